package roomserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"meandu-go/internal/middleware"
	"meandu-go/internal/services"
)

// RoomHandler 封装了房间相关的 HTTP 处理器方法。
type RoomHandler struct {
	roomService services.RoomService
}

// NewRoomHandler 创建一个新的 RoomHandler 实例。
func NewRoomHandler(roomService services.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// GetMessagesHandler serves GET /room/messages?room_id=.
func (h *RoomHandler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room_id")
	if roomID == "" {
		writeJSONError(w, "room_id is required", http.StatusBadRequest)
		return
	}

	msgs, err := h.roomService.History(r.Context(), roomID)
	if err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("[http] history failed")
		writeJSONError(w, "could not load messages", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, msgs)
}

// FetchRoomHandler serves GET /room/fetch?room_id=.
func (h *RoomHandler) FetchRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room_id")
	if roomID == "" {
		writeJSONError(w, "room_id is required", http.StatusBadRequest)
		return
	}

	room, err := h.roomService.GetRoom(r.Context(), roomID)
	if errors.Is(err, services.ErrRoomNotFound) {
		writeJSONError(w, "room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("[http] fetch room failed")
		writeJSONError(w, "could not load room", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, room)
}

// CreateRoomHandler serves POST /room/create. The owner is the
// authenticated user when there is one.
func (h *RoomHandler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req services.CreateRoomInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if userID, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		req.OwnerID = userID
	}

	room, err := h.roomService.CreateRoom(r.Context(), req)
	if errors.Is(err, services.ErrInvalidRoom) {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("[http] create room failed")
		writeJSONError(w, "could not create room", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusCreated, room)
}

// ListRoomsHandler serves GET /room/list?user=.
func (h *RoomHandler) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("user")
	if userID, ok := middleware.GetUserIDFromContext(r.Context()); ok && owner == "" {
		owner = userID
	}
	if owner == "" {
		writeJSONError(w, "user is required", http.StatusBadRequest)
		return
	}

	rooms, err := h.roomService.ListRooms(r.Context(), owner)
	if err != nil {
		log.Error().Err(err).Str("user", owner).Msg("[http] list rooms failed")
		writeJSONError(w, "could not list rooms", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, rooms)
}
