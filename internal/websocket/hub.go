package websocket

import (
	"context"

	"github.com/rs/zerolog/log"

	"meandu-go/internal/imtypes"
)

type sizeRequest struct {
	roomID string
	reply  chan int
}

// Hub maintains the set of active clients per room and fans room frames out
// to them. All client bookkeeping happens on the Run goroutine.
type Hub struct {
	// Registered clients, by room.
	rooms map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	// Frames to fan out; fed by the local relay or the Kafka consumer.
	frames chan imtypes.RoomFrame

	sizes chan sizeRequest

	// closed when Run returns
	done chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		frames:     make(chan imtypes.RoomFrame, 256),
		sizes:      make(chan sizeRequest),
		done:       make(chan struct{}),
	}
}

// Deliver queues a frame for fan-out without blocking the caller.
func (h *Hub) Deliver(frame imtypes.RoomFrame) {
	select {
	case h.frames <- frame:
	default:
		log.Warn().Str("room", frame.RoomID).Str("type", string(frame.Type)).Msg("[hub] frame queue full, frame dropped")
	}
}

// RoomSize returns the number of clients connected to roomID.
func (h *Hub) RoomSize(roomID string) int {
	reply := make(chan int, 1)
	select {
	case h.sizes <- sizeRequest{roomID: roomID, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Run starts the hub and serves its channels until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	log.Info().Msg("[hub] run loop started")
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for _, clients := range h.rooms {
				for c := range clients {
					close(c.send)
				}
			}
			h.rooms = make(map[string]map[*Client]struct{})
			log.Info().Msg("[hub] run loop stopped")
			return

		case client := <-h.register:
			clients, ok := h.rooms[client.RoomID]
			if !ok {
				clients = make(map[*Client]struct{})
				h.rooms[client.RoomID] = clients
			}
			clients[client] = struct{}{}
			log.Info().Str("room", client.RoomID).Str("user", client.UserID).Str("conn", client.ID).Msg("[hub] client registered")

		case client := <-h.unregister:
			h.remove(client)

		case frame := <-h.frames:
			h.fanOut(frame)

		case req := <-h.sizes:
			req.reply <- len(h.rooms[req.roomID])
		}
	}
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.RoomID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.RoomID)
	}
	log.Info().Str("room", client.RoomID).Str("conn", client.ID).Msg("[hub] client unregistered")
}

// fanOut sends frame to every client of its room except the one it came from.
func (h *Hub) fanOut(frame imtypes.RoomFrame) {
	for client := range h.rooms[frame.RoomID] {
		if client.ID == frame.OriginID {
			continue
		}
		select {
		case client.send <- frame.Payload:
		default:
			log.Warn().Str("room", frame.RoomID).Str("conn", client.ID).Msg("[hub] client send buffer full, dropping client")
			h.remove(client)
		}
	}
}
