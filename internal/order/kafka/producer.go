package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	poskafka "ms-pos/internal/kafka"
	"ms-pos/internal/logger"
	"ms-pos/internal/models"

	"github.com/segmentio/kafka-go"
)

// Notifier hands staff notifications to the external messaging service through a
// Kafka topic, keyed by order id.
type Notifier struct {
	Writer poskafka.MessageWriter
	Topic  string
	Logger *logger.Logger
}

func NewNotifier(brokers []string, topic string, log *logger.Logger) *Notifier {
	return &Notifier{Writer: poskafka.NewWriter(brokers, topic), Topic: topic, Logger: log}
}

func (n *Notifier) NotifyOrder(ctx context.Context, note models.OrderNotification) error {
	msgBytes, err := json.Marshal(note)
	if err != nil {
		return err
	}

	err = n.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(note.OrderID),
		Value: msgBytes,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(note.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka notify %s: %w", note.OrderNumber, err)
	}
	n.Logger.LogKafka("NOTIFY", n.Topic, note.OrderNumber)
	return nil
}

func (n *Notifier) Close() error {
	return n.Writer.Close()
}

// EventMirror streams bus payloads to a reporting topic. The bus topic travels in
// a header and the order id is the message key.
type EventMirror struct {
	Writer poskafka.MessageWriter
	Topic  string
	Logger *logger.Logger
}

func NewEventMirror(brokers []string, topic string, log *logger.Logger) *EventMirror {
	return &EventMirror{Writer: poskafka.NewWriter(brokers, topic), Topic: topic, Logger: log}
}

func (m *EventMirror) Publish(ctx context.Context, busTopic string, payload []byte) error {
	err := m.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(orderKey(payload)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "bus_topic", Value: []byte(busTopic)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka mirror: %w", err)
	}
	m.Logger.LogKafka("MIRROR", m.Topic, busTopic)
	return nil
}

func (m *EventMirror) Close() error {
	return m.Writer.Close()
}

// orderKey pulls the order id out of a new_order or order_updated payload.
func orderKey(payload []byte) string {
	var probe struct {
		OrderID string `json:"order_id"`
		Order   struct {
			ID string `json:"id"`
		} `json:"order"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	if probe.OrderID != "" {
		return probe.OrderID
	}
	return probe.Order.ID
}
