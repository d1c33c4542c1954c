package kafkahandlers

import (
	"context"
	"encoding/json"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog/log"

	"meandu-go/internal/imtypes"
)

// FrameSink receives frames consumed from the room topic.
type FrameSink interface {
	Deliver(frame imtypes.RoomFrame)
}

// RoomFrameConsumerLogic hands room frames from Kafka to the local hub.
type RoomFrameConsumerLogic struct {
	sink FrameSink
}

// NewRoomFrameConsumerLogic creates a new instance of RoomFrameConsumerLogic.
func NewRoomFrameConsumerLogic(sink FrameSink) *RoomFrameConsumerLogic {
	if sink == nil {
		log.Panic().Msg("[kafka] frame sink cannot be nil")
	}
	return &RoomFrameConsumerLogic{sink: sink}
}

// HandleRoomFrame is the MessageHandler passed to the Kafka consumer. A
// malformed record is skipped, not retried.
func (h *RoomFrameConsumerLogic) HandleRoomFrame(_ context.Context, msg *kafka.Message) error {
	var frame imtypes.RoomFrame
	if err := json.Unmarshal(msg.Value, &frame); err != nil {
		log.Warn().Err(err).Str("key", string(msg.Key)).Msg("[kafka] malformed room frame skipped")
		return nil
	}
	if frame.RoomID == "" || len(frame.Payload) == 0 {
		log.Warn().Str("key", string(msg.Key)).Msg("[kafka] incomplete room frame skipped")
		return nil
	}
	h.sink.Deliver(frame)
	return nil
}
