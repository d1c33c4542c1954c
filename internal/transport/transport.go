// Package transport owns the client side of a room WebSocket: one connection
// per subscription, a read loop feeding decoded frames to a callback, a write
// pump that serialises sends and keepalive pings, and an idempotent close.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"meandu-go/internal/config"
	"meandu-go/internal/imtypes"
)

const sendBufferSize = 64

var (
	// ErrNotOpen is reported to send callbacks when no connection is open.
	ErrNotOpen = errors.New("transport: not open")
	// ErrClosed is reported for sends dropped because the connection closed.
	ErrClosed = errors.New("transport: closed")
	// ErrSendBufferFull is reported when the outbound queue is saturated.
	ErrSendBufferFull = errors.New("transport: send buffer full")
)

// ResultFunc receives every inbound frame in arrival order, one at a time.
// res is nil for a frame the decoder does not recognise. A non-nil err is the
// last call for the connection: the read loop has stopped and the transport
// is no longer open.
type ResultFunc func(res *imtypes.SocketResult, err error)

// Options configures a Transport.
type Options struct {
	URL          string // ws(s)://host/websockets/room
	Token        string // sent as a bearer token when non-empty
	PingPeriod   time.Duration
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	Clock        clock.Clock
}

// OptionsFromConfig maps client configuration to transport options.
func OptionsFromConfig(cfg config.ClientConfig) Options {
	return Options{
		URL:          cfg.WebSocketURL(),
		Token:        cfg.Token,
		PingPeriod:   cfg.PingPeriod,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// Transport maintains at most one open connection at a time.
type Transport struct {
	opts   Options
	dialer *websocket.Dialer

	mu      sync.Mutex
	link    *link
	opened  bool
	dialing chan struct{} // non-nil while a dial is in flight, closed when it ends
	dialGen uint64
	gen     uint64 // bumped by Close; a dial from an older generation is discarded
}

type outbound struct {
	data []byte
	done func(error)
}

// link is one live connection and its pumps.
type link struct {
	conn   *websocket.Conn
	roomID string
	send   chan outbound
	done   chan struct{}
	once   sync.Once

	// sendMu orders enqueues against the final drain of send.
	sendMu  sync.Mutex
	drained bool
}

// New creates a closed Transport.
func New(opts Options) *Transport {
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 40 * time.Second
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Transport{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.DialTimeout,
		},
	}
}

// Opened reports whether a connection is currently open.
func (t *Transport) Opened() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opened
}

// Subscribe opens a connection for the room and starts delivering frames to
// onResult. It is a no-op while a connection is already open or being
// opened; callers wanting a fresh connection must Close first. A dial
// abandoned by Close is waited out and replaced by a new one.
func (t *Transport) Subscribe(ctx context.Context, roomID, userID string, onResult ResultFunc) error {
	t.mu.Lock()
	for {
		if t.opened {
			t.mu.Unlock()
			return nil
		}
		if t.dialing == nil {
			break
		}
		if t.dialGen == t.gen {
			t.mu.Unlock()
			return nil
		}
		wait := t.dialing
		t.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		t.mu.Lock()
	}
	dialing := make(chan struct{})
	t.dialing = dialing
	gen := t.gen
	t.dialGen = gen
	t.mu.Unlock()

	conn, err := t.dial(ctx, roomID, userID)

	t.mu.Lock()
	t.dialing = nil
	close(dialing)
	if err != nil {
		t.mu.Unlock()
		log.Warn().Err(err).Str("room", roomID).Msg("[transport] open failed")
		return err
	}
	if gen != t.gen {
		t.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	l := &link{
		conn:   conn,
		roomID: roomID,
		send:   make(chan outbound, sendBufferSize),
		done:   make(chan struct{}),
	}
	t.link = l
	t.opened = true
	t.mu.Unlock()

	log.Info().Str("room", roomID).Str("user", userID).Msg("[transport] connected")

	go t.writePump(l)
	go t.readPump(l, onResult)
	return nil
}

func (t *Transport) dial(ctx context.Context, roomID, userID string) (*websocket.Conn, error) {
	u, err := url.Parse(t.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse websocket url: %w", err)
	}
	q := u.Query()
	q.Set("room_id", roomID)
	q.Set("user_id", userID)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if t.opts.Token != "" {
		header.Set("Authorization", "Bearer "+t.opts.Token)
	}

	dctx, cancel := context.WithTimeout(ctx, t.opts.DialTimeout)
	defer cancel()

	conn, resp, err := t.dialer.DialContext(dctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Redacted(), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	return conn, nil
}

// SendMessage queues a chat message. done, if non-nil, is called once with
// the write outcome; failures are also logged.
func (t *Transport) SendMessage(msg imtypes.RoomMessage, done func(error)) {
	data, err := imtypes.EncodeMessage(msg)
	if err != nil {
		log.Error().Err(err).Str("id", msg.ID).Msg("[transport] encode message failed")
		callDone(done, err)
		return
	}
	t.enqueue(data, done)
}

// SendTyping queues a typing update. Failures are logged only.
func (t *Transport) SendTyping(update imtypes.TypingUpdate) {
	data, err := imtypes.EncodeTyping(update)
	if err != nil {
		log.Error().Err(err).Msg("[transport] encode typing update failed")
		return
	}
	t.enqueue(data, nil)
}

func (t *Transport) enqueue(data []byte, done func(error)) {
	t.mu.Lock()
	l := t.link
	t.mu.Unlock()

	if l == nil {
		log.Warn().Msg("[transport] send while not open, dropped")
		callDone(done, ErrNotOpen)
		return
	}

	l.enqueue(outbound{data: data, done: done})
}

// enqueue hands ob to the write pump. Once the pump has drained the link,
// ob fails with ErrClosed instead of waiting in a buffer nobody reads.
func (l *link) enqueue(ob outbound) {
	l.sendMu.Lock()
	if l.drained {
		l.sendMu.Unlock()
		callDone(ob.done, ErrClosed)
		return
	}
	select {
	case l.send <- ob:
		l.sendMu.Unlock()
	default:
		l.sendMu.Unlock()
		log.Warn().Str("room", l.roomID).Msg("[transport] send buffer full, dropped")
		callDone(ob.done, ErrSendBufferFull)
	}
}

// drain fails everything still queued and refuses later sends.
func (l *link) drain() {
	l.sendMu.Lock()
	l.drained = true
	pending := make([]outbound, 0, len(l.send))
	for len(l.send) > 0 {
		pending = append(pending, <-l.send)
	}
	l.sendMu.Unlock()

	for _, ob := range pending {
		callDone(ob.done, ErrClosed)
	}
}

// Close closes the connection with a going-away code. Closing a closed
// transport does nothing. Frames still in flight are not delivered.
func (t *Transport) Close() {
	t.mu.Lock()
	t.gen++
	l := t.link
	t.link = nil
	t.opened = false
	t.mu.Unlock()

	if l == nil {
		return
	}
	l.shutdown(t.opts.WriteTimeout)
	log.Info().Str("room", l.roomID).Msg("[transport] closed")
}

// detach forgets l if it is still the current link. It reports whether it was.
func (t *Transport) detach(l *link) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.link != l {
		return false
	}
	t.link = nil
	t.opened = false
	return true
}

func (t *Transport) current(l *link) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.link == l
}

func (l *link) shutdown(writeWait time.Duration) {
	l.once.Do(func() {
		close(l.done)
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
		_ = l.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = l.conn.Close()
	})
}

// readPump delivers frames until the connection fails or is closed.
func (t *Transport) readPump(l *link, onResult ResultFunc) {
	for {
		messageType, data, err := l.conn.ReadMessage()
		if err != nil {
			if !t.detach(l) {
				// closed by Close; the pending receive is dropped
				return
			}
			l.shutdown(t.opts.WriteTimeout)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("room", l.roomID).Msg("[transport] connection lost")
			} else {
				log.Info().Err(err).Str("room", l.roomID).Msg("[transport] read loop ended")
			}
			onResult(nil, err)
			return
		}

		if messageType != websocket.TextMessage {
			log.Debug().Int("type", messageType).Msg("[transport] non-text frame ignored")
			continue
		}

		res, derr := imtypes.DecodeFrame(data)
		if derr != nil {
			log.Debug().Err(derr).Str("room", l.roomID).Msg("[transport] frame dropped")
			res = nil
		}
		if !t.current(l) {
			return
		}
		onResult(res, nil)
	}
}

// writePump owns all data writes on the connection and sends keepalive pings.
func (t *Transport) writePump(l *link) {
	ticker := t.opts.Clock.Ticker(t.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		l.drain()
	}()

	for {
		select {
		case <-l.done:
			return
		case ob := <-l.send:
			_ = l.conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout))
			err := l.conn.WriteMessage(websocket.TextMessage, ob.data)
			if err != nil {
				log.Warn().Err(err).Str("room", l.roomID).Msg("[transport] write failed")
			}
			callDone(ob.done, err)
			if err != nil {
				// unblocks the read loop, which reports the failure
				l.shutdown(t.opts.WriteTimeout)
				return
			}
		case <-ticker.C:
			_ = l.conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout))
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("room", l.roomID).Msg("[transport] ping failed")
			}
		}
	}
}

func callDone(done func(error), err error) {
	if done != nil {
		done(err)
	}
}
