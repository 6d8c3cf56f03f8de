package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Envelope wraps every published domain event with its type and id so
// consumers can dispatch without knowing the payload shape up front.
type Envelope struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: writer}
}

// PublishEvent wraps the payload in an Envelope keyed by the aggregate id,
// so events for the same order stay ordered within a partition.
func (p *Producer) PublishEvent(ctx context.Context, key, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	envelope := Envelope{
		ID:        uuid.New().String(),
		EventType: eventType,
		Data:      data,
		Timestamp: time.Now(),
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  envelope.Timestamp,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
