package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"dispatch/internal/domain"
)

const kafkaWriteTimeout = 2 * time.Second

// KafkaSink publishes notifications to a Kafka topic, giving downstream
// consumers (push delivery, audit, replay) a durable event stream.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a KafkaSink writing to the given brokers and topic.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaSink{writer: w}
}

func (s *KafkaSink) Name() string { return "kafka" }

// Deliver publishes one notification keyed by recipient so per-recipient
// ordering is preserved within a partition.
func (s *KafkaSink) Deliver(ctx context.Context, n domain.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, kafkaWriteTimeout)
	defer cancel()

	value, err := json.Marshal(kafkaEnvelope{
		ID:            n.ID,
		Kind:          string(n.Kind),
		RecipientRole: string(n.RecipientRole),
		RecipientID:   n.RecipientID,
		Title:         n.Title,
		Body:          n.Body,
		Payload:       n.Payload,
		Priority:      string(n.Priority),
		CreatedAt:     n.CreatedAt,
	})
	if err != nil {
		return err
	}

	key := n.RecipientID
	if key == "" {
		key = string(n.RecipientRole)
	}

	return s.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value})
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

type kafkaEnvelope struct {
	ID            string         `json:"id"`
	Kind          string         `json:"kind"`
	RecipientRole string         `json:"recipient_role"`
	RecipientID   string         `json:"recipient_id,omitempty"`
	Title         string         `json:"title"`
	Body          string         `json:"body"`
	Payload       map[string]any `json:"payload,omitempty"`
	Priority      string         `json:"priority"`
	CreatedAt     time.Time      `json:"created_at"`
}
