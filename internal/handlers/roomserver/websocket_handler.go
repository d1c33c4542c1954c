package roomserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"meandu-go/internal/config"
	"meandu-go/internal/imtypes"
	"meandu-go/internal/middleware"
	"meandu-go/internal/services"
	ws "meandu-go/internal/websocket"
)

// WebSocketHandler 负责处理房间 WebSocket 连接请求。
type WebSocketHandler struct {
	ctx         context.Context
	hub         *ws.Hub
	roomService services.RoomService
	wsCfg       config.WebSocketConfig
}

// NewWebSocketHandler creates a handler whose connections live at most as
// long as ctx.
func NewWebSocketHandler(ctx context.Context, hub *ws.Hub, roomService services.RoomService, wsCfg config.WebSocketConfig) *WebSocketHandler {
	return &WebSocketHandler{ctx: ctx, hub: hub, roomService: roomService, wsCfg: wsCfg}
}

// ServeWS serves GET /websockets/room?room_id=&user_id=.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room_id")
	userID := r.URL.Query().Get("user_id")
	if roomID == "" || userID == "" {
		http.Error(w, "room_id and user_id are required", http.StatusBadRequest)
		return
	}
	if authed, ok := middleware.GetUserIDFromContext(r.Context()); ok && authed != userID {
		http.Error(w, "token does not match user_id", http.StatusForbidden)
		return
	}

	if _, err := h.roomService.GetRoom(r.Context(), roomID); err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("room", roomID).Msg("[ws] room lookup failed")
		http.Error(w, "room lookup failed", http.StatusInternalServerError)
		return
	}

	ws.ServeWsPerConnection(h.ctx, h.hub, h.handleFrame, roomID, userID, w, r, h.wsCfg)
}

func (h *WebSocketHandler) handleFrame(ctx context.Context, c *ws.Client, res *imtypes.SocketResult) error {
	switch res.Kind {
	case imtypes.ResultMessage:
		return h.roomService.PostMessage(ctx, c.RoomID, c.ID, c.UserID, *res.Message)
	case imtypes.ResultTyping:
		return h.roomService.PostTyping(ctx, c.RoomID, c.ID, *res.Typing)
	default:
		return nil
	}
}
