// Package kafka carries audit events over a Kafka topic. The Publisher is
// the producer side used by the change-capture listener; the Handler is the
// consumer side that feeds the sink worker.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	audit "ezclaim/pkg/platform/audit"
)

// Producer queues a record without blocking.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Publisher implements audit.Publisher on a Kafka topic. Records are keyed
// by entity id so every event for one entity lands on the same partition.
type Publisher struct {
	producer Producer
	topic    string
	newID    func() string
}

// NewPublisher creates a publisher for topic.
func NewPublisher(producer Producer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic, newID: uuid.NewString}
}

var _ audit.Publisher = (*Publisher)(nil)

// Publish assigns the event id up front so a redelivered record is stored
// once by the idempotent audit store.
func (p *Publisher) Publish(ctx context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = p.newID()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	if err := p.producer.Produce(ctx, p.topic, []byte(event.EntityID), value); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}
