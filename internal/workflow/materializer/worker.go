package materializer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"visaflow/internal/interview/events"
	"visaflow/internal/platform/kafka/consumer"
)

// KafkaHandler adapts the materializer to the Kafka consumer loop.
type KafkaHandler struct {
	service *Service
}

// NewKafkaHandler creates a consumer handler over the materializer.
func NewKafkaHandler(service *Service) *KafkaHandler {
	return &KafkaHandler{service: service}
}

// Handle decodes one completion event record and materializes it.
func (h *KafkaHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	var event events.CompletedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("decode completion event: %w", err)
	}
	return h.service.HandleCompleted(ctx, event)
}

// ChannelPublisher is the in-process stand-in for Kafka used when no
// brokers are configured. It pairs with Worker below.
type ChannelPublisher struct {
	inbox  chan events.CompletedEvent
	logger *slog.Logger
}

// NewChannelPublisher creates a buffered in-process publisher.
func NewChannelPublisher(buffer int, logger *slog.Logger) *ChannelPublisher {
	return &ChannelPublisher{
		inbox:  make(chan events.CompletedEvent, buffer),
		logger: logger,
	}
}

// PublishCompleted enqueues the event without blocking; a full inbox drops
// the event with a log line, matching the fire-and-forget contract.
func (p *ChannelPublisher) PublishCompleted(ctx context.Context, event events.CompletedEvent) {
	select {
	case p.inbox <- event:
	default:
		p.logger.ErrorContext(ctx, "materializer inbox full, dropping completion event",
			"event_id", event.EventID,
			"user_id", event.UserID,
		)
	}
}

// Worker consumes completion events from the channel publisher and
// materializes them. It keeps background processing testable without
// wiring a broker.
type Worker struct {
	service *Service
	inbox   <-chan events.CompletedEvent
	logger  *slog.Logger
}

// NewWorker creates a worker draining the publisher's inbox.
func NewWorker(service *Service, publisher *ChannelPublisher, logger *slog.Logger) *Worker {
	return &Worker{service: service, inbox: publisher.inbox, logger: logger}
}

// Run processes events until the context is canceled. Materialization
// failures are logged and skipped; the interview side never sees them.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.service.HandleCompleted(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to materialize workflow",
					"event_id", event.EventID,
					"user_id", event.UserID,
					"error", err,
				)
			}
		}
	}
}
