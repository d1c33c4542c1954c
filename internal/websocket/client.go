package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"meandu-go/internal/config"
	"meandu-go/internal/imtypes"
)

// FrameHandler processes one decoded frame received from c.
type FrameHandler func(ctx context.Context, c *Client, res *imtypes.SocketResult) error

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound frames. Closed by the hub.
	send chan []byte

	// ID identifies this connection; frames it produces carry it as origin.
	ID     string
	RoomID string
	UserID string

	handleFrame FrameHandler
}

// readPump pumps frames from the websocket connection to the handler.
func (c *Client) readPump(ctx context.Context, wsCfg config.WebSocketConfig) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	pongWait := time.Duration(wsCfg.PongWaitSeconds) * time.Second
	c.conn.SetReadLimit(int64(wsCfg.MaxMessageSizeBytes))
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("conn", c.ID).Msg("[ws] connection error")
			} else {
				log.Debug().Err(err).Str("conn", c.ID).Msg("[ws] connection closed")
			}
			return
		}

		if messageType != websocket.TextMessage {
			log.Warn().Int("type", messageType).Str("conn", c.ID).Msg("[ws] non-text frame ignored")
			continue
		}

		res, err := imtypes.DecodeFrame(data)
		if err != nil {
			log.Debug().Err(err).Str("conn", c.ID).Msg("[ws] unrecognized frame dropped")
			continue
		}
		if err := c.handleFrame(ctx, c, res); err != nil {
			log.Warn().Err(err).Str("conn", c.ID).Str("kind", res.Kind.String()).Msg("[ws] frame not handled")
		}
	}
}

// writePump pumps frames from the hub to the websocket connection, one
// frame per websocket message.
func (c *Client) writePump(wsCfg config.WebSocketConfig) {
	writeWait := time.Duration(wsCfg.WriteWaitSeconds) * time.Second
	ticker := time.NewTicker(time.Duration(wsCfg.PingPeriodSeconds) * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWsPerConnection upgrades the request and attaches the connection to
// roomID in hub. ctx bounds frame handling for the connection's lifetime.
func ServeWsPerConnection(ctx context.Context, hub *Hub, handler FrameHandler, roomID, userID string, w http.ResponseWriter, r *http.Request, wsCfg config.WebSocketConfig) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("[ws] upgrade failed")
		return
	}
	client := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		ID:          uuid.NewString(),
		RoomID:      roomID,
		UserID:      userID,
		handleFrame: handler,
	}
	select {
	case client.hub.register <- client:
	case <-client.hub.done:
		_ = conn.Close()
		return
	}

	go client.writePump(wsCfg)
	go client.readPump(ctx, wsCfg)
}
