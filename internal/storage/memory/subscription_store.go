package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

// SubscriptionStore keeps subscriptions in memory with at most one active
// row per user.
type SubscriptionStore struct {
	mu   sync.Mutex
	rows map[string]smartlink.Subscription
	now  func() time.Time
}

// NewSubscriptionStore constructs an empty SubscriptionStore.
func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{rows: make(map[string]smartlink.Subscription), now: time.Now}
}

// Activate implements smartlink.SubscriptionStore.
func (s *SubscriptionStore) Activate(_ context.Context, sub smartlink.Subscription) error {
	if sub.ID == "" {
		return fmt.Errorf("activate subscription: %w: id is required", smartlink.ErrInvalid)
	}
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("activate subscription: %w: %w", smartlink.ErrInvalid, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	if sub.Status == smartlink.StatusActive {
		for id, row := range s.rows {
			if id != sub.ID && row.UserID == sub.UserID && row.Status == smartlink.StatusActive {
				row.Status = smartlink.StatusInactive
				row.UpdatedAt = now
				s.rows[id] = row
			}
		}
	}
	sub.UpdatedAt = now
	s.rows[sub.ID] = sub
	return nil
}

// Active implements smartlink.SubscriptionStore.
func (s *SubscriptionStore) Active(_ context.Context, userID string) (smartlink.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.UserID == userID && row.Status == smartlink.StatusActive {
			return row, nil
		}
	}
	return smartlink.Subscription{}, fmt.Errorf("active subscription for %s: %w", userID, smartlink.ErrNotFound)
}

// ActiveCount reports how many active rows exist for userID.
func (s *SubscriptionStore) ActiveCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.rows {
		if row.UserID == userID && row.Status == smartlink.StatusActive {
			n++
		}
	}
	return n
}
