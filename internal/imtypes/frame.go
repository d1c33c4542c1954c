package imtypes

import (
	"encoding/json"
	"time"
)

// FrameType is the explicit discriminator carried by every frame.
type FrameType string

const (
	FrameTypeMessage FrameType = "message"
	FrameTypeTyping  FrameType = "typing"
)

// ResultKind tags a SocketResult.
type ResultKind int

const (
	ResultMessage ResultKind = iota + 1
	ResultTyping
)

func (k ResultKind) String() string {
	switch k {
	case ResultMessage:
		return "message"
	case ResultTyping:
		return "typing"
	default:
		return "unknown"
	}
}

// SocketResult is a decoded inbound frame: exactly one of Message or Typing
// is set, according to Kind.
type SocketResult struct {
	Kind    ResultKind
	Message *RoomMessage
	Typing  *TypingUpdate
}

// RoomFrame is a frame as routed between relay connections. OriginID is the
// relay connection that produced it; that connection never receives it back.
type RoomFrame struct {
	RoomID    string          `json:"roomId"`
	OriginID  string          `json:"originId"`
	Type      FrameType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// EncodeMessage serialises a message to a text frame.
func EncodeMessage(m RoomMessage) ([]byte, error) {
	return json.Marshal(m)
}

// EncodeTyping serialises a typing update to a text frame.
func EncodeTyping(u TypingUpdate) ([]byte, error) {
	return json.Marshal(u)
}

// NewMessageFrame wraps a message for routing to the other connections of roomID.
func NewMessageFrame(roomID, originID string, m RoomMessage, now time.Time) (RoomFrame, error) {
	payload, err := EncodeMessage(m)
	if err != nil {
		return RoomFrame{}, err
	}
	return RoomFrame{RoomID: roomID, OriginID: originID, Type: FrameTypeMessage, Payload: payload, Timestamp: now}, nil
}

// NewTypingFrame wraps a typing update for routing to the other connections of roomID.
func NewTypingFrame(roomID, originID string, u TypingUpdate, now time.Time) (RoomFrame, error) {
	payload, err := EncodeTyping(u)
	if err != nil {
		return RoomFrame{}, err
	}
	return RoomFrame{RoomID: roomID, OriginID: originID, Type: FrameTypeTyping, Payload: payload, Timestamp: now}, nil
}
