package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"meandu-go/internal/imtypes"
	"meandu-go/internal/models"
	"meandu-go/internal/storage"
)

// HistoryLimit caps the number of messages returned as room history.
const HistoryLimit = 500

var (
	// ErrRoomNotFound is returned for an unknown room id.
	ErrRoomNotFound = errors.New("room not found")
	// ErrSenderMismatch is returned when a message claims another sender.
	ErrSenderMismatch = errors.New("sender does not match connection user")
	// ErrInvalidRoom is returned for a room that fails validation.
	ErrInvalidRoom = errors.New("invalid room")
)

// HistoryCache caches room logs. Implementations may be slow or down; the
// service treats cache errors as misses.
type HistoryCache interface {
	Get(ctx context.Context, roomID string) ([]imtypes.RoomMessage, bool, error)
	Set(ctx context.Context, roomID string, msgs []imtypes.RoomMessage) error
	Invalidate(ctx context.Context, roomID string) error
}

// CreateRoomInput is the payload of a room creation request.
type CreateRoomInput struct {
	OwnerID     string `json:"user" validate:"required,max=64"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=2000"`
}

// RoomService 定义了房间相关服务的接口。
type RoomService interface {
	CreateRoom(ctx context.Context, input CreateRoomInput) (imtypes.Room, error)
	GetRoom(ctx context.Context, roomID string) (imtypes.Room, error)
	ListRooms(ctx context.Context, ownerID string) ([]imtypes.Room, error)
	// History returns the room's log in arrival order.
	History(ctx context.Context, roomID string) ([]imtypes.RoomMessage, error)
	// PostMessage persists a message sent by userID over connection originID
	// and relays it to the other connections of the room.
	PostMessage(ctx context.Context, roomID, originID, userID string, msg imtypes.RoomMessage) error
	// PostTyping relays a typing update without storing it.
	PostTyping(ctx context.Context, roomID, originID string, update imtypes.TypingUpdate) error
}

type roomService struct {
	rooms    storage.RoomRepository
	messages storage.MessageRepository
	cache    HistoryCache // nil when caching is disabled
	relay    FrameRelay
	validate *validator.Validate
	now      func() time.Time
}

// NewRoomService 创建一个新的 RoomService 实例。cache may be nil.
func NewRoomService(rooms storage.RoomRepository, messages storage.MessageRepository, cache HistoryCache, relay FrameRelay) RoomService {
	return &roomService{
		rooms:    rooms,
		messages: messages,
		cache:    cache,
		relay:    relay,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (s *roomService) CreateRoom(ctx context.Context, input CreateRoomInput) (imtypes.Room, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validate.Struct(input); err != nil {
		return imtypes.Room{}, fmt.Errorf("%w: %v", ErrInvalidRoom, err)
	}
	room := &models.Room{
		ID:          uuid.NewString(),
		UserID:      input.OwnerID,
		Name:        input.Name,
		Description: input.Description,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return imtypes.Room{}, fmt.Errorf("create room: %w", err)
	}
	log.Info().Str("room", room.ID).Str("owner", room.UserID).Msg("[rooms] room created")
	return room.ToWire(), nil
}

func (s *roomService) GetRoom(ctx context.Context, roomID string) (imtypes.Room, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if errors.Is(err, storage.ErrNotFound) {
		return imtypes.Room{}, ErrRoomNotFound
	}
	if err != nil {
		return imtypes.Room{}, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return room.ToWire(), nil
}

func (s *roomService) ListRooms(ctx context.Context, ownerID string) ([]imtypes.Room, error) {
	rows, err := s.rooms.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list rooms of %s: %w", ownerID, err)
	}
	rooms := make([]imtypes.Room, 0, len(rows))
	for _, r := range rows {
		rooms = append(rooms, r.ToWire())
	}
	return rooms, nil
}

// History 先查缓存，未命中时查询数据库并回填缓存。
func (s *roomService) History(ctx context.Context, roomID string) ([]imtypes.RoomMessage, error) {
	if s.cache != nil {
		msgs, ok, err := s.cache.Get(ctx, roomID)
		if err != nil {
			log.Warn().Err(err).Str("room", roomID).Msg("[rooms] history cache unavailable")
		} else if ok {
			return msgs, nil
		}
	}

	rows, err := s.messages.ListByRoom(ctx, roomID, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history of %s: %w", roomID, err)
	}
	msgs := make([]imtypes.RoomMessage, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.ToWire())
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, roomID, msgs); err != nil {
			log.Warn().Err(err).Str("room", roomID).Msg("[rooms] history cache fill failed")
		}
	}
	return msgs, nil
}

// PostMessage 持久化消息，使缓存失效，然后转发给房间内其他连接。
// A message id already stored is a redelivery and is neither stored nor
// relayed again.
func (s *roomService) PostMessage(ctx context.Context, roomID, originID, userID string, msg imtypes.RoomMessage) error {
	if userID != "" && msg.Sender != userID {
		return fmt.Errorf("%w: %q sent as %q", ErrSenderMismatch, userID, msg.Sender)
	}

	now := s.now()
	row := models.NewRoomMessage(roomID, msg, now)
	if err := s.messages.Create(ctx, row); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			log.Debug().Str("room", roomID).Str("id", msg.ID).Msg("[rooms] duplicate message ignored")
			return nil
		}
		return fmt.Errorf("store message %s: %w", msg.ID, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, roomID); err != nil {
			log.Warn().Err(err).Str("room", roomID).Msg("[rooms] history cache invalidate failed")
		}
	}

	frame, err := imtypes.NewMessageFrame(roomID, originID, row.ToWire(), now)
	if err != nil {
		return fmt.Errorf("encode message %s: %w", msg.ID, err)
	}
	return s.relay.Relay(ctx, frame)
}

func (s *roomService) PostTyping(ctx context.Context, roomID, originID string, update imtypes.TypingUpdate) error {
	frame, err := imtypes.NewTypingFrame(roomID, originID, update, s.now())
	if err != nil {
		return fmt.Errorf("encode typing update: %w", err)
	}
	return s.relay.Relay(ctx, frame)
}
