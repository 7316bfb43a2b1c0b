package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

// PublisherSink forwards every event to a topic as its own message.
type PublisherSink struct {
	publisher smartlink.Publisher
	topic     string
}

// NewPublisherSink constructs a PublisherSink.
func NewPublisherSink(publisher smartlink.Publisher, topic string) *PublisherSink {
	return &PublisherSink{publisher: publisher, topic: topic}
}

// Consume publishes the batch, continuing past failures and returning them
// joined.
func (s *PublisherSink) Consume(ctx context.Context, batch []smartlink.Event) error {
	if s == nil || s.publisher == nil {
		return nil
	}
	var errs []error
	for _, evt := range batch {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := s.publisher.Publish(ctx, s.topic, evt); err != nil {
			errs = append(errs, fmt.Errorf("publish event %s: %w", evt.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Close implements analytics.Sink.
func (s *PublisherSink) Close(context.Context) error {
	return nil
}
