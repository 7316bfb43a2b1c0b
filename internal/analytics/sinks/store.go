package sinks

import (
	"context"
	"fmt"

	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

// StoreSink persists batches through an EventStore.
type StoreSink struct {
	store smartlink.EventStore
}

// NewStoreSink constructs a StoreSink.
func NewStoreSink(store smartlink.EventStore) *StoreSink {
	return &StoreSink{store: store}
}

// Consume writes the batch in one call so the store can use one transaction.
func (s *StoreSink) Consume(ctx context.Context, batch []smartlink.Event) error {
	if s == nil || s.store == nil || len(batch) == 0 {
		return nil
	}
	if err := s.store.InsertEvents(ctx, batch); err != nil {
		return fmt.Errorf("persist %d events: %w", len(batch), err)
	}
	return nil
}

// Close implements analytics.Sink.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
