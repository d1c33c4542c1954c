package services

import (
	"context"
	"fmt"

	appKafka "meandu-go/internal/kafka"
	"meandu-go/internal/imtypes"
)

// FrameRelay carries a room frame to every connection of the room, on this
// relay instance and any other.
type FrameRelay interface {
	Relay(ctx context.Context, frame imtypes.RoomFrame) error
}

// FrameSink is the local fan-out point, normally the websocket hub.
type FrameSink interface {
	Deliver(frame imtypes.RoomFrame)
}

type directRelay struct {
	sink FrameSink
}

// NewDirectRelay delivers frames straight to the local hub. Use it when a
// single relay instance serves all rooms.
func NewDirectRelay(sink FrameSink) FrameRelay {
	return &directRelay{sink: sink}
}

func (r *directRelay) Relay(_ context.Context, frame imtypes.RoomFrame) error {
	r.sink.Deliver(frame)
	return nil
}

type kafkaRelay struct {
	producer appKafka.FrameProducer
}

// NewKafkaRelay publishes frames to the room topic. Every instance consumes
// the topic back into its own hub, this one included.
func NewKafkaRelay(producer appKafka.FrameProducer) FrameRelay {
	return &kafkaRelay{producer: producer}
}

func (r *kafkaRelay) Relay(ctx context.Context, frame imtypes.RoomFrame) error {
	if err := r.producer.PublishFrame(ctx, frame); err != nil {
		return fmt.Errorf("relay frame for room %s: %w", frame.RoomID, err)
	}
	return nil
}
