package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/pinaka-makhana/storefront/internal/payments"
)

// PubSubOutcomePublisher publishes payment outcomes to a Pub/Sub topic.
type PubSubOutcomePublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubOutcomePublisher constructs a Pub/Sub backed outcome publisher.
func NewPubSubOutcomePublisher(topic *pubsub.Topic) (*PubSubOutcomePublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub outcome publisher: topic is required")
	}
	return &PubSubOutcomePublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOutcome implements payments.OutcomeSink.
func (p *PubSubOutcomePublisher) PublishOutcome(ctx context.Context, outcome payments.Outcome) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub outcome publisher: not initialised")
	}

	data, err := p.marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal payment outcome: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "method", string(outcome.Method))
	setAttr(attrs, "orderId", outcome.OrderID)
	setAttr(attrs, "attemptId", outcome.AttemptID)
	setAttr(attrs, "failureKind", string(outcome.FailureKind))
	if outcome.Succeeded {
		attrs["outcome"] = "succeeded"
	} else {
		attrs["outcome"] = "failed"
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish payment outcome: %w", err)
	}
	return nil
}

// Close flushes pending messages.
func (p *PubSubOutcomePublisher) Close() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
