package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meandu-go/internal/config"
	"meandu-go/internal/imtypes"
)

func TestFrameRecord(t *testing.T) {
	frame := imtypes.RoomFrame{
		RoomID:    "room-1",
		OriginID:  "conn-7",
		Type:      imtypes.FrameTypeMessage,
		Payload:   json.RawMessage(`{"type":"message","id":"m1","sender":"u1","sender_name":"Ada","message":"hi"}`),
		Timestamp: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	record, err := frameRecord("meandu-room-frames", frame)
	require.NoError(t, err)

	require.NotNil(t, record.TopicPartition.Topic)
	assert.Equal(t, "meandu-room-frames", *record.TopicPartition.Topic)
	assert.Equal(t, []byte("room-1"), record.Key)
	assert.True(t, frame.Timestamp.Equal(record.Timestamp))

	headers := map[string]string{}
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "message", headers[HeaderFrameType])
	assert.Equal(t, "conn-7", headers[HeaderOriginID])

	var back imtypes.RoomFrame
	require.NoError(t, json.Unmarshal(record.Value, &back))
	assert.Equal(t, frame.OriginID, back.OriginID)
	assert.JSONEq(t, string(frame.Payload), string(back.Payload))
}

func TestFrameRecord_Edges(t *testing.T) {
	_, err := frameRecord("frames", imtypes.RoomFrame{Type: imtypes.FrameTypeTyping, Payload: json.RawMessage(`{}`)})
	assert.Error(t, err)

	before := time.Now()
	record, err := frameRecord("frames", imtypes.RoomFrame{RoomID: "room-2", Type: imtypes.FrameTypeTyping, Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.False(t, record.Timestamp.Before(before))
}

func TestNewRoomFrameProducer_RequiresTopic(t *testing.T) {
	_, err := NewRoomFrameProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)
}
