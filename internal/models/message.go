package models

import (
	"time"

	"meandu-go/internal/imtypes"
)

// RoomMessage 代表存储在数据库中的房间消息。
// Seq is assigned on insert and defines arrival order within the whole table.
type RoomMessage struct {
	Seq             uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	MessageID       string    `gorm:"uniqueIndex;type:varchar(64);not null" json:"id"`
	RoomID          string    `gorm:"index;type:varchar(64);not null" json:"roomId"`
	SenderID        string    `gorm:"index;type:varchar(64);not null" json:"sender"`
	SenderName      string    `gorm:"type:varchar(100);not null" json:"senderName"`
	SenderNumber    string    `gorm:"type:varchar(32)" json:"senderNumber"`
	SenderThumbnail string    `gorm:"type:varchar(255)" json:"senderThumbnail"`
	Kind            string    `gorm:"type:varchar(20);not null;default:'text'" json:"kind"`
	Body            string    `gorm:"type:text" json:"message"`
	SentAt          time.Time `gorm:"not null" json:"sentAt"`
	BaseModel
}

// TableName 指定 RoomMessage 模型的表名。
func (RoomMessage) TableName() string {
	return "room_messages"
}

// NewRoomMessage maps a wire message received in roomID to a row. A message
// without a parseable timestamp is stamped with receivedAt.
func NewRoomMessage(roomID string, m imtypes.RoomMessage, receivedAt time.Time) *RoomMessage {
	sentAt := m.SentAt()
	if sentAt.IsZero() {
		sentAt = receivedAt
	}
	kind := string(m.Kind)
	if kind == "" {
		kind = string(imtypes.TextMessageKind)
	}
	return &RoomMessage{
		MessageID:       m.ID,
		RoomID:          roomID,
		SenderID:        m.Sender,
		SenderName:      m.SenderName,
		SenderNumber:    m.SenderNumber,
		SenderThumbnail: m.SenderThumbnail,
		Kind:            kind,
		Body:            m.Message,
		SentAt:          sentAt.UTC(),
	}
}

// ToWire converts the row back to the shape clients receive.
func (m RoomMessage) ToWire() imtypes.RoomMessage {
	return imtypes.RoomMessage{
		ID:              m.MessageID,
		Sender:          m.SenderID,
		SenderName:      m.SenderName,
		SenderNumber:    m.SenderNumber,
		SenderThumbnail: m.SenderThumbnail,
		Message:         m.Body,
		Kind:            imtypes.MessageKind(m.Kind),
		Timestamp:       m.SentAt.UTC().Format(imtypes.TimestampLayout),
	}
}
