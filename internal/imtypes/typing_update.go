package imtypes

import "encoding/json"

// TypingKind enumerates typing signals. Only "typing" exists; there is no
// "stopped typing" signal, receivers expire the state themselves.
type TypingKind string

const TypingKindTyping TypingKind = "typing"

// TypingUpdate signals that a participant is composing a message. It is never
// stored in the log.
type TypingUpdate struct {
	Kind       TypingKind `json:"kind" validate:"required,oneof=typing"`
	SenderName string     `json:"sender_name" validate:"required"`
}

// NewTypingUpdate builds a typing update authored by the given identity.
func NewTypingUpdate(from Identity, kind TypingKind) TypingUpdate {
	return TypingUpdate{Kind: kind, SenderName: from.Name}
}

// MarshalJSON adds the "typing" type tag.
func (u TypingUpdate) MarshalJSON() ([]byte, error) {
	type alias TypingUpdate
	return json.Marshal(struct {
		Type FrameType `json:"type"`
		alias
	}{FrameTypeTyping, alias(u)})
}
