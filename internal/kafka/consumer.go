package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"

	"ms-pos/internal/logger"

	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

// NewConsumer creates a new Kafka consumer for the given topic and group
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, log: log}
}

// Run hands every message to handler until ctx is cancelled. Handler errors are
// logged and the message is skipped.
func (c *Consumer) Run(ctx context.Context, handler func(ctx context.Context, msg kafka.Message) error) error {
	topic := c.reader.Config().Topic
	c.log.LogKafka("CONSUME", topic, "consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			c.log.Error("KAFKA", fmt.Sprintf("Error reading from %s: %v", topic, err))
			continue
		}

		if err := handler(ctx, msg); err != nil {
			c.log.Warn("KAFKA", fmt.Sprintf("Handler failed for %s offset %d: %v", topic, msg.Offset, err))
		}
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
