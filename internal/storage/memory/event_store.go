package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

// EventStore appends events to a slice. Replayed ids are ignored.
type EventStore struct {
	mu     sync.RWMutex
	seen   map[string]struct{}
	events []smartlink.Event
}

// NewEventStore constructs an empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{seen: make(map[string]struct{})}
}

// InsertEvents implements smartlink.EventStore.
func (s *EventStore) InsertEvents(_ context.Context, events []smartlink.Event) error {
	for _, evt := range events {
		if err := evt.Validate(); err != nil {
			return fmt.Errorf("event %s: %w: %w", evt.ID, smartlink.ErrInvalid, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range events {
		if _, dup := s.seen[evt.ID]; dup {
			continue
		}
		s.seen[evt.ID] = struct{}{}
		s.events = append(s.events, evt)
	}
	return nil
}

// Events returns a copy of everything stored so far.
func (s *EventStore) Events() []smartlink.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]smartlink.Event(nil), s.events...)
}

// LinkStats implements smartlink.EventStore with the same bot exclusion as
// the Postgres store.
func (s *EventStore) LinkStats(_ context.Context, linkID string, since time.Time) (smartlink.LinkStats, error) {
	stats := smartlink.LinkStats{ClicksByPlatform: map[smartlink.Platform]int64{}}
	daily := map[string]*smartlink.DailyCount{}

	s.mu.RLock()
	for _, evt := range s.events {
		if evt.LinkID != linkID || evt.Bot || evt.OccurredAt.Before(since) {
			continue
		}
		key := evt.OccurredAt.UTC().Format("2006-01-02")
		day, ok := daily[key]
		if !ok {
			day = &smartlink.DailyCount{Day: key}
			daily[key] = day
		}
		switch evt.Kind {
		case smartlink.EventView:
			stats.Views++
			day.Views++
		case smartlink.EventClick:
			stats.Clicks++
			day.Clicks++
			stats.ClicksByPlatform[evt.Platform]++
		}
	}
	s.mu.RUnlock()

	for _, day := range daily {
		stats.Daily = append(stats.Daily, *day)
	}
	sort.Slice(stats.Daily, func(i, j int) bool { return stats.Daily[i].Day < stats.Daily[j].Day })
	return stats, nil
}
