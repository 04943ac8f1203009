package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"visaflow/internal/platform/kafka/producer"
)

// KafkaPublisher emits completion events to the Kafka topic. Publishing is
// fire-and-forget; marshal or delivery failures are logged and dropped so
// they can never unwind a completed interview.
type KafkaPublisher struct {
	producer *producer.Producer
	logger   *slog.Logger
}

// NewKafkaPublisher wraps a connected producer.
func NewKafkaPublisher(p *producer.Producer, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: p, logger: logger}
}

// PublishCompleted sends one completion event keyed by user ID, so events
// for a user land on one partition in order.
func (p *KafkaPublisher) PublishCompleted(ctx context.Context, event CompletedEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to encode completion event",
			"event_id", event.EventID,
			"error", err,
		)
		return
	}
	p.producer.Publish(ctx, event.UserID, payload)
}
