package imtypes

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrUnrecognizedFrame is returned for frames matching no known schema.
var ErrUnrecognizedFrame = errors.New("unrecognized frame")

var validate = validator.New()

type frameHeader struct {
	Type FrameType `json:"type"`
}

// DecodeFrame classifies an inbound text frame.
//
// A frame carrying a "type" tag is decoded against that schema only. An
// untagged frame is tried against the RoomMessage schema first and the
// TypingUpdate schema second, so a frame satisfying both is a message.
// Messages arriving without an id are given a fresh one.
func DecodeFrame(data []byte) (*SocketResult, error) {
	var hdr frameHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedFrame, err)
	}

	switch hdr.Type {
	case FrameTypeMessage:
		return decodeMessage(data)
	case FrameTypeTyping:
		return decodeTyping(data)
	case "":
		if res, err := decodeMessage(data); err == nil {
			return res, nil
		}
		return decodeTyping(data)
	default:
		return nil, fmt.Errorf("%w: type %q", ErrUnrecognizedFrame, hdr.Type)
	}
}

func decodeMessage(data []byte) (*SocketResult, error) {
	var m RoomMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedFrame, err)
	}
	if err := validate.Struct(m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedFrame, err)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Kind == "" {
		m.Kind = TextMessageKind
	}
	return &SocketResult{Kind: ResultMessage, Message: &m}, nil
}

func decodeTyping(data []byte) (*SocketResult, error) {
	var u TypingUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedFrame, err)
	}
	if err := validate.Struct(u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedFrame, err)
	}
	return &SocketResult{Kind: ResultTyping, Typing: &u}, nil
}
