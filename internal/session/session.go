// Package session implements the per-room chat session: the append-only
// message log, the ephemeral typing indicator with its expiry timer, delivery
// status of locally sent messages, and the subscription lifecycle.
//
// All state is guarded by one mutex, so mutations are serialised no matter
// which goroutine (UI, transport read loop, timer) drives them.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"meandu-go/internal/imtypes"
	"meandu-go/internal/notify"
	"meandu-go/internal/transport"
)

// DefaultTypingExpiry is how long a typing indicator survives without renewal.
const DefaultTypingExpiry = 15 * time.Second

var (
	// ErrClosed is returned for operations on a closed session.
	ErrClosed = errors.New("session: closed")
	// ErrEmptyMessage is returned when the text to send is blank.
	ErrEmptyMessage = errors.New("session: empty message")
)

// State is the subscription state of a session.
type State int

const (
	Idle State = iota
	Subscribing
	Active
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Subscribing:
		return "subscribing"
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// DeliveryStatus tracks a message through the outbound path.
type DeliveryStatus int

const (
	StatusUnknown DeliveryStatus = iota
	StatusPending
	StatusSent
	StatusFailed
)

func (d DeliveryStatus) String() string {
	switch d {
	case StatusPending:
		return "pending"
	case StatusSent:
		return "sent"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Transport is the connection a session drives.
type Transport interface {
	Subscribe(ctx context.Context, roomID, userID string, onResult transport.ResultFunc) error
	SendMessage(msg imtypes.RoomMessage, done func(error))
	SendTyping(update imtypes.TypingUpdate)
	Close()
}

// HistoryLoader fetches the server-side log of a room.
type HistoryLoader interface {
	FetchMessages(ctx context.Context, roomID string) ([]imtypes.RoomMessage, error)
}

// Options holds the optional collaborators of a session.
type Options struct {
	Notifier     notify.Notifier
	Clock        clock.Clock
	TypingExpiry time.Duration
}

// Session is the state of one viewed room.
type Session struct {
	roomID    string
	me        imtypes.Identity
	transport Transport
	history   HistoryLoader
	notifier  notify.Notifier
	clock     clock.Clock
	expiry    time.Duration

	// subMu serialises Subscribe and Resubscribe so a forced reconnect never
	// overlaps a dial still in flight.
	subMu sync.Mutex

	mu          sync.Mutex
	state       State
	epoch       uint64 // bumped by every (re)subscribe and close; stale callbacks compare against it
	messages    []imtypes.RoomMessage
	status      map[string]DeliveryStatus
	typing      *imtypes.TypingUpdate
	typingTimer *clock.Timer
	typingSeq   uint64
	lastErr     error

	watchMu  sync.Mutex
	watchers map[int]chan Event
	nextW    int
}

// New creates an Idle session for roomID acting as me.
func New(roomID string, me imtypes.Identity, tr Transport, history HistoryLoader, opts Options) *Session {
	if opts.Notifier == nil {
		opts.Notifier = notify.Log{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.TypingExpiry <= 0 {
		opts.TypingExpiry = DefaultTypingExpiry
	}
	return &Session{
		roomID:    roomID,
		me:        me,
		transport: tr,
		history:   history,
		notifier:  opts.Notifier,
		clock:     opts.Clock,
		expiry:    opts.TypingExpiry,
		status:    make(map[string]DeliveryStatus),
		watchers:  make(map[int]chan Event),
	}
}

// RoomID returns the room this session belongs to.
func (s *Session) RoomID() string { return s.roomID }

// State returns the current subscription state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that last ended the subscription, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Messages returns a copy of the log in arrival order.
func (s *Session) Messages() []imtypes.RoomMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]imtypes.RoomMessage(nil), s.messages...)
}

// Typing returns the current typing indicator, or nil when no one is typing.
func (s *Session) Typing() *imtypes.TypingUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.typing == nil {
		return nil
	}
	u := *s.typing
	return &u
}

// DeliveryStatus reports the status of a message in the log. Messages that
// did not originate here are StatusSent.
func (s *Session) DeliveryStatus(id string) DeliveryStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.status[id]; ok {
		return st
	}
	for _, m := range s.messages {
		if m.ID == id {
			return StatusSent
		}
	}
	return StatusUnknown
}

// FetchHistory loads the room's log from the server and replaces the local
// log with it wholesale. On failure the user is notified and the local state
// is left as it was.
//
// A live message appended while the fetch is in flight is lost by the
// replace, so callers fetch before subscribing.
func (s *Session) FetchHistory(ctx context.Context) error {
	msgs, err := s.history.FetchMessages(ctx, s.roomID)
	if err != nil {
		log.Warn().Err(err).Str("room", s.roomID).Msg("[session] history fetch failed")
		s.notifier.Toast(notify.GenericError)
		return err
	}

	s.mu.Lock()
	s.messages = append(make([]imtypes.RoomMessage, 0, len(msgs)), msgs...)
	kept := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		kept[m.ID] = struct{}{}
	}
	for id := range s.status {
		if _, ok := kept[id]; !ok {
			delete(s.status, id)
		}
	}
	s.mu.Unlock()

	log.Debug().Str("room", s.roomID).Int("count", len(msgs)).Msg("[session] history loaded")
	s.emit(MessagesChanged)
	return nil
}

// Subscribe opens the live connection. It does nothing while already Active
// or Subscribing.
func (s *Session) Subscribe(ctx context.Context) error {
	return s.subscribe(ctx, false)
}

// Resubscribe closes any existing connection, then subscribes again. It is
// the recovery path for a connection that may have died silently.
func (s *Session) Resubscribe(ctx context.Context) error {
	return s.subscribe(ctx, true)
}

func (s *Session) subscribe(ctx context.Context, force bool) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.mu.Lock()
	if (s.state == Active || s.state == Subscribing) && !force {
		s.mu.Unlock()
		return nil
	}
	s.epoch++
	epoch := s.epoch
	s.state = Subscribing
	s.lastErr = nil
	s.mu.Unlock()
	s.emit(StateChanged)

	if force {
		s.transport.Close()
	}

	err := s.transport.Subscribe(ctx, s.roomID, s.me.ID, func(res *imtypes.SocketResult, err error) {
		s.handleResult(epoch, res, err)
	})

	s.mu.Lock()
	if epoch != s.epoch {
		// closed or resubscribed while connecting
		s.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		s.state = Closed
		s.lastErr = err
		s.mu.Unlock()
		s.emit(StateChanged)
		return err
	}
	if s.state == Subscribing {
		s.state = Active
	}
	st := s.state
	s.mu.Unlock()

	if st == Active {
		log.Info().Str("room", s.roomID).Msg("[session] active")
		s.emit(StateChanged)
	}
	return nil
}

// handleResult is the transport callback for the connection opened in epoch.
// A receive failure ends the subscription: the session moves to Closed and
// stays there until an explicit Subscribe or Resubscribe.
func (s *Session) handleResult(epoch uint64, res *imtypes.SocketResult, err error) {
	if err != nil {
		s.mu.Lock()
		if epoch != s.epoch {
			s.mu.Unlock()
			return
		}
		s.state = Closed
		s.lastErr = err
		cleared := s.clearTypingLocked()
		s.mu.Unlock()

		log.Warn().Err(err).Str("room", s.roomID).Msg("[session] subscription ended")
		s.emit(StateChanged)
		if cleared {
			s.emit(TypingChanged)
		}
		return
	}
	if res == nil {
		return
	}

	var kind EventKind
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	switch res.Kind {
	case imtypes.ResultMessage:
		if s.appendLocked(*res.Message) {
			kind = MessagesChanged
		}
	case imtypes.ResultTyping:
		if s.setTypingLocked(*res.Typing) {
			kind = TypingChanged
		}
	}
	s.mu.Unlock()

	if kind != 0 {
		s.emit(kind)
	}
}

// OnInboundMessage appends a received message to the log. The log is never
// reordered or de-duplicated. Ignored once the session is Closed.
func (s *Session) OnInboundMessage(msg imtypes.RoomMessage) {
	s.mu.Lock()
	ok := s.appendLocked(msg)
	s.mu.Unlock()

	if ok {
		s.emit(MessagesChanged)
	}
}

func (s *Session) appendLocked(msg imtypes.RoomMessage) bool {
	if s.state == Closed {
		return false
	}
	s.messages = append(s.messages, msg)
	return true
}

// OnInboundTyping replaces the typing indicator and restarts its expiry
// timer. Ignored once the session is Closed.
func (s *Session) OnInboundTyping(update imtypes.TypingUpdate) {
	s.mu.Lock()
	ok := s.setTypingLocked(update)
	s.mu.Unlock()

	if ok {
		s.emit(TypingChanged)
	}
}

func (s *Session) setTypingLocked(update imtypes.TypingUpdate) bool {
	if s.state == Closed {
		return false
	}
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typing = &update
	s.typingSeq++
	seq := s.typingSeq
	s.typingTimer = s.clock.AfterFunc(s.expiry, func() { s.expireTyping(seq) })
	return true
}

func (s *Session) expireTyping(seq uint64) {
	s.mu.Lock()
	if seq != s.typingSeq || s.typing == nil {
		// superseded by a newer update, or already cleared
		s.mu.Unlock()
		return
	}
	s.typing = nil
	s.typingTimer = nil
	s.mu.Unlock()

	s.emit(TypingChanged)
}

// clearTypingLocked drops the indicator and its timer. It reports whether an
// indicator was showing.
func (s *Session) clearTypingLocked() bool {
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	s.typingSeq++
	had := s.typing != nil
	s.typing = nil
	return had
}

// SendMessage appends a message authored by the local user to the log and
// hands it to the transport. The append happens before any network I/O; the
// outcome of the write is reflected only in DeliveryStatus.
func (s *Session) SendMessage(text string) (imtypes.RoomMessage, error) {
	if strings.TrimSpace(text) == "" {
		return imtypes.RoomMessage{}, ErrEmptyMessage
	}

	msg := imtypes.NewRoomMessage(s.me, text, s.clock.Now())

	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return imtypes.RoomMessage{}, ErrClosed
	}
	s.messages = append(s.messages, msg)
	s.status[msg.ID] = StatusPending
	s.mu.Unlock()
	s.emit(MessagesChanged)

	s.transport.SendMessage(msg, func(err error) { s.markDelivery(msg.ID, err) })
	return msg, nil
}

func (s *Session) markDelivery(id string, err error) {
	st := StatusSent
	if err != nil {
		st = StatusFailed
		log.Warn().Err(err).Str("room", s.roomID).Str("id", id).Msg("[session] message not delivered")
	}

	s.mu.Lock()
	if _, ok := s.status[id]; !ok {
		s.mu.Unlock()
		return
	}
	s.status[id] = st
	s.mu.Unlock()

	s.emit(StatusChanged)
}

// SendTypingUpdate tells the room the local user is composing. Local state
// is not touched: the local user's own typing is never shown.
func (s *Session) SendTypingUpdate(kind imtypes.TypingKind) {
	s.mu.Lock()
	closed := s.state == Closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.transport.SendTyping(imtypes.NewTypingUpdate(s.me, kind))
}

// Close closes the connection and stops inbound processing. Closing a
// closed session only re-closes the (already closed) transport.
func (s *Session) Close() {
	s.mu.Lock()
	s.epoch++
	changed := s.state != Closed
	s.state = Closed
	cleared := s.clearTypingLocked()
	s.mu.Unlock()

	s.transport.Close()

	if changed {
		log.Info().Str("room", s.roomID).Msg("[session] closed")
		s.emit(StateChanged)
	}
	if cleared {
		s.emit(TypingChanged)
	}
}
