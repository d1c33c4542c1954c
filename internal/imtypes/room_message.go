package imtypes

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the ISO-8601 layout with fractional seconds used on the wire.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ThumbnailNone marks a sender without an avatar.
const ThumbnailNone = "none"

// MessageKind is the content kind of a chat message.
type MessageKind string

const (
	TextMessageKind  MessageKind = "text"
	ImageMessageKind MessageKind = "image"
	AudioMessageKind MessageKind = "audio"
)

// RoomMessage is a single entry of a room's message log. It is never mutated
// once created.
type RoomMessage struct {
	ID              string      `json:"id"`
	Sender          string      `json:"sender" validate:"required"`
	SenderName      string      `json:"sender_name" validate:"required"`
	SenderNumber    string      `json:"sender_number"`
	SenderThumbnail string      `json:"sender_thumbnail"`
	Message         string      `json:"message" validate:"required"`
	Kind            MessageKind `json:"kind,omitempty"`
	Timestamp       string      `json:"timestamp,omitempty"`
}

// NewRoomMessage builds a text message authored by the given identity.
func NewRoomMessage(from Identity, text string, now time.Time) RoomMessage {
	thumb := from.Thumbnail
	if thumb == "" {
		thumb = ThumbnailNone
	}
	return RoomMessage{
		ID:              uuid.NewString(),
		Sender:          from.ID,
		SenderName:      from.Name,
		SenderNumber:    from.Number,
		SenderThumbnail: thumb,
		Message:         text,
		Kind:            TextMessageKind,
		Timestamp:       now.UTC().Format(TimestampLayout),
	}
}

// SentAt parses Timestamp. The zero time is returned for a missing or
// malformed value.
func (m RoomMessage) SentAt() time.Time {
	t, err := time.Parse(TimestampLayout, m.Timestamp)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, m.Timestamp)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

// MarshalJSON adds the "message" type tag.
func (m RoomMessage) MarshalJSON() ([]byte, error) {
	type alias RoomMessage
	return json.Marshal(struct {
		Type FrameType `json:"type"`
		alias
	}{FrameTypeMessage, alias(m)})
}
