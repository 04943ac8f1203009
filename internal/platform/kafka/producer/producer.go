// Package producer wraps a franz-go client for fire-and-forget event
// publishing.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes records to a single topic.
type Producer struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New connects to the brokers and ensures the topic exists. A missing topic
// is created with a single partition; errors from topic creation other than
// "already exists" fail startup so misconfiguration surfaces early.
func New(brokers []string, topic string, logger *slog.Logger) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopic(context.Background(), 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		logger.Warn("topic creation returned error, continuing",
			"topic", topic,
			"error", resp.Err,
		)
	}

	return &Producer{client: client, topic: topic, logger: logger}, nil
}

// Publish sends one record asynchronously. Delivery failures are logged,
// never returned: publishing is fire-and-forget by contract and must not
// unwind the caller's completed state.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) {
	record := &kgo.Record{Topic: p.topic, Key: []byte(key), Value: value}
	p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("failed to publish record",
				"topic", r.Topic,
				"key", string(r.Key),
				"error", err,
			)
		}
	})
}

// Close flushes pending records and releases the client.
func (p *Producer) Close(ctx context.Context) error {
	if err := p.client.Flush(ctx); err != nil {
		p.client.Close()
		return fmt.Errorf("flush producer: %w", err)
	}
	p.client.Close()
	return nil
}
