package imtypes

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		wantKind ResultKind
		wantErr  bool
	}{
		{
			name:     "tagged message",
			frame:    `{"type":"message","id":"m1","sender":"u1","sender_name":"Ada","sender_number":"+16502530000","sender_thumbnail":"none","message":"hi","kind":"text","timestamp":"2024-01-02T03:04:05.678Z"}`,
			wantKind: ResultMessage,
		},
		{
			name:     "tagged typing",
			frame:    `{"type":"typing","kind":"typing","sender_name":"Ada"}`,
			wantKind: ResultTyping,
		},
		{
			name:     "untagged message",
			frame:    `{"sender":"u1","sender_name":"Ada","sender_number":"","sender_thumbnail":"none","message":"hi","kind":"text"}`,
			wantKind: ResultMessage,
		},
		{
			name:     "untagged typing",
			frame:    `{"kind":"typing","sender_name":"Ada"}`,
			wantKind: ResultTyping,
		},
		{
			// satisfies both schemas; the message schema wins
			name:     "untagged message that also looks like typing",
			frame:    `{"sender":"u1","sender_name":"Ada","message":"hi","kind":"typing"}`,
			wantKind: ResultMessage,
		},
		{
			name:    "tagged message missing body",
			frame:   `{"type":"message","sender":"u1","sender_name":"Ada"}`,
			wantErr: true,
		},
		{
			name:    "tagged typing with unknown kind",
			frame:   `{"type":"typing","kind":"stopped","sender_name":"Ada"}`,
			wantErr: true,
		},
		{
			name:    "unknown type tag",
			frame:   `{"type":"presence","sender_name":"Ada"}`,
			wantErr: true,
		},
		{
			name:    "matches neither schema",
			frame:   `{"hello":"world"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			frame:   `ping`,
			wantErr: true,
		},
		{
			name:    "json array",
			frame:   `[1,2,3]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := DecodeFrame([]byte(tt.frame))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnrecognizedFrame))
				assert.Nil(t, res)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, tt.wantKind, res.Kind)
			switch res.Kind {
			case ResultMessage:
				assert.NotNil(t, res.Message)
				assert.Nil(t, res.Typing)
			case ResultTyping:
				assert.NotNil(t, res.Typing)
				assert.Nil(t, res.Message)
			}
		})
	}
}

func TestDecodeFrame_AssignsMissingID(t *testing.T) {
	frame := `{"sender":"u1","sender_name":"Ada","message":"hi"}`

	a, err := DecodeFrame([]byte(frame))
	require.NoError(t, err)
	b, err := DecodeFrame([]byte(frame))
	require.NoError(t, err)

	assert.NotEmpty(t, a.Message.ID)
	assert.NotEqual(t, a.Message.ID, b.Message.ID)
	assert.Equal(t, TextMessageKind, a.Message.Kind)
}

func TestDecodeFrame_KeepsServerID(t *testing.T) {
	res, err := DecodeFrame([]byte(`{"type":"message","id":"abc","sender":"u1","sender_name":"Ada","message":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", res.Message.ID)
}

func TestEncodeMessage_RoundTripsThroughDecoder(t *testing.T) {
	me := Identity{ID: "u1", Name: "Ada", Number: "+16502530000", Thumbnail: "https://img/ada.png"}
	now := time.Date(2024, 5, 6, 7, 8, 9, 123_000_000, time.UTC)
	msg := NewRoomMessage(me, "hello", now)

	data, err := EncodeMessage(msg)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "message", fields["type"])
	assert.Equal(t, "u1", fields["sender"])
	assert.Equal(t, "Ada", fields["sender_name"])
	assert.Equal(t, "+16502530000", fields["sender_number"])
	assert.Equal(t, "https://img/ada.png", fields["sender_thumbnail"])
	assert.Equal(t, "hello", fields["message"])
	assert.Equal(t, "text", fields["kind"])
	assert.Equal(t, "2024-05-06T07:08:09.123Z", fields["timestamp"])

	res, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, msg, *res.Message)
	assert.True(t, res.Message.SentAt().Equal(now))
}

func TestEncodeTyping(t *testing.T) {
	data, err := EncodeTyping(NewTypingUpdate(Identity{ID: "u1", Name: "Ada"}, TypingKindTyping))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"typing","kind":"typing","sender_name":"Ada"}`, string(data))
}

func TestNewRoomMessage_DefaultsThumbnail(t *testing.T) {
	msg := NewRoomMessage(Identity{ID: "u1", Name: "Ada"}, "x", time.Now())
	assert.Equal(t, ThumbnailNone, msg.SenderThumbnail)
	assert.NotEmpty(t, msg.ID)
}

func TestNewMessageFrame_PayloadDecodes(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	msg := NewRoomMessage(Identity{ID: "u1", Name: "Ada"}, "hi", now)

	frame, err := NewMessageFrame("room-1", "conn-1", msg, now)
	require.NoError(t, err)
	assert.Equal(t, FrameTypeMessage, frame.Type)
	assert.Equal(t, "conn-1", frame.OriginID)

	data, err := json.Marshal(frame)
	require.NoError(t, err)
	var back RoomFrame
	require.NoError(t, json.Unmarshal(data, &back))

	res, err := DecodeFrame(back.Payload)
	require.NoError(t, err)
	assert.Equal(t, msg, *res.Message)
}
