package kafka

import (
	"context"
	"fmt"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog/log"

	"meandu-go/internal/config"
)

// MessageHandler is a function type for processing consumed Kafka messages.
type MessageHandler func(ctx context.Context, msg *kafka.Message) error

// MessageConsumer defines the interface for a Kafka message consumer.
type MessageConsumer interface {
	Consume(ctx context.Context, topics []string, groupID string, handler MessageHandler) error
	Close()
}

// confluentKafkaConsumer is an implementation of MessageConsumer using confluent-kafka-go.
type confluentKafkaConsumer struct {
	consumer *kafka.Consumer
	cfg      config.KafkaConfig
	groupID  string
}

// NewConfluentKafkaConsumer creates a consumer; the connection is made by Consume.
func NewConfluentKafkaConsumer(cfg config.KafkaConfig) (MessageConsumer, error) {
	return &confluentKafkaConsumer{cfg: cfg}, nil
}

// Consume starts consuming messages from the specified topics and group.
// It blocks until ctx is canceled or a fatal error occurs. Room fan-out only
// cares about live traffic, so a group without a committed offset starts at
// the end of the topic.
func (c *confluentKafkaConsumer) Consume(ctx context.Context, topics []string, groupID string, handler MessageHandler) error {
	if len(topics) == 0 {
		return fmt.Errorf("kafka consumer: no topics specified")
	}
	c.groupID = groupID

	configMap := &kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(c.cfg.Brokers, ","),
		"group.id":           c.groupID,
		"auto.offset.reset":  "latest",
		"enable.auto.commit": "false",
		"security.protocol":  c.cfg.Protocol,
	}
	if c.cfg.ClientID != "" {
		_ = configMap.SetKey("client.id", c.cfg.ClientID)
	}

	consumer, err := kafka.NewConsumer(configMap)
	if err != nil {
		return fmt.Errorf("failed to create Kafka consumer for group %s: %w", groupID, err)
	}
	c.consumer = consumer

	if err := c.consumer.SubscribeTopics(topics, nil); err != nil {
		_ = c.consumer.Close()
		return fmt.Errorf("failed to subscribe to topics %v for group %s: %w", topics, groupID, err)
	}

	log.Info().Str("group", groupID).Strs("topics", topics).Msg("[kafka] consumer started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("group", groupID).Msg("[kafka] consumer stopping")
			return nil
		default:
		}

		ev := c.consumer.Poll(1000)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			if err := handler(ctx, e); err != nil {
				log.Warn().Err(err).Str("group", groupID).Str("topic", *e.TopicPartition.Topic).
					Str("offset", e.TopicPartition.Offset.String()).Msg("[kafka] message not processed")
				continue
			}
			if _, err := c.consumer.CommitMessage(e); err != nil {
				log.Warn().Err(err).Str("group", groupID).Msg("[kafka] commit failed")
			}
		case kafka.Error:
			log.Error().Err(e).Str("group", groupID).Bool("fatal", e.IsFatal()).Msg("[kafka] consumer error")
			if e.IsFatal() {
				return e
			}
		case kafka.AssignedPartitions:
			log.Info().Str("group", groupID).Int("partitions", len(e.Partitions)).Msg("[kafka] partitions assigned")
			_ = c.consumer.Assign(e.Partitions)
		case kafka.RevokedPartitions:
			log.Info().Str("group", groupID).Int("partitions", len(e.Partitions)).Msg("[kafka] partitions revoked")
			_ = c.consumer.Unassign()
		}
	}
}

// Close closes the Kafka consumer.
func (c *confluentKafkaConsumer) Close() {
	if c.consumer == nil {
		return
	}
	if err := c.consumer.Close(); err != nil {
		log.Warn().Err(err).Str("group", c.groupID).Msg("[kafka] consumer close failed")
	}
	c.consumer = nil
}
