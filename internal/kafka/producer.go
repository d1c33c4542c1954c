package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog/log"

	"meandu-go/internal/config"
	"meandu-go/internal/imtypes"
)

// Record headers set on every room frame.
const (
	HeaderFrameType = "frame-type"
	HeaderOriginID  = "origin-id"
)

// FrameProducer publishes room frames to the shared room topic.
type FrameProducer interface {
	PublishFrame(ctx context.Context, frame imtypes.RoomFrame) error
	Close()
}

type roomFrameProducer struct {
	producer *kafka.Producer
	topic    string
}

// NewRoomFrameProducer 创建房间帧生产者, 帧写入 cfg.RoomTopic
func NewRoomFrameProducer(cfg config.KafkaConfig) (FrameProducer, error) {
	if cfg.RoomTopic == "" {
		return nil, errors.New("kafka room topic is not configured")
	}
	configMap := &kafka.ConfigMap{
		"bootstrap.servers": strings.Join(cfg.Brokers, ","),
		"security.protocol": cfg.Protocol,
		// room frames are ordered per key; keep them ordered across retries
		"enable.idempotence": true,
	}
	if cfg.ClientID != "" {
		_ = configMap.SetKey("client.id", cfg.ClientID)
	}

	p, err := kafka.NewProducer(configMap)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return &roomFrameProducer{producer: p, topic: cfg.RoomTopic}, nil
}

// frameRecord builds the Kafka record for frame. The room id is the key so
// all frames of a room land on one partition in order.
func frameRecord(topic string, frame imtypes.RoomFrame) (*kafka.Message, error) {
	if frame.RoomID == "" {
		return nil, errors.New("room frame without room id")
	}
	value, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode room frame: %w", err)
	}
	ts := frame.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(frame.RoomID),
		Value:          value,
		Timestamp:      ts,
		Headers: []kafka.Header{
			{Key: HeaderFrameType, Value: []byte(frame.Type)},
			{Key: HeaderOriginID, Value: []byte(frame.OriginID)},
		},
	}, nil
}

// PublishFrame produces frame and waits for its delivery report.
func (p *roomFrameProducer) PublishFrame(ctx context.Context, frame imtypes.RoomFrame) error {
	record, err := frameRecord(p.topic, frame)
	if err != nil {
		return err
	}

	deliveryChan := make(chan kafka.Event, 1)
	if err := p.producer.Produce(record, deliveryChan); err != nil {
		return fmt.Errorf("enqueue frame for room %s: %w", frame.RoomID, err)
	}

	select {
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %T: %v", e, e)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("deliver frame for room %s: %w", frame.RoomID, m.TopicPartition.Error)
		}
		log.Debug().Str("room", frame.RoomID).Str("type", string(frame.Type)).
			Int32("partition", m.TopicPartition.Partition).Msg("[kafka] frame delivered")
		return nil
	case <-ctx.Done():
		// the frame may still be delivered
		return fmt.Errorf("wait delivery for room %s: %w", frame.RoomID, ctx.Err())
	}
}

// Close flushes outstanding frames and closes the producer.
func (p *roomFrameProducer) Close() {
	if p.producer == nil {
		return
	}
	log.Info().Str("topic", p.topic).Msg("[kafka] closing producer")
	if remaining := p.producer.Flush(15 * 1000); remaining > 0 {
		log.Warn().Int("remaining", remaining).Msg("[kafka] frames still outstanding after flush")
	}
	p.producer.Close()
}
