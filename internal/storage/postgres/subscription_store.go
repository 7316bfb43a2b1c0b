package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

// SubscriptionStore keeps the subscriptions table consistent with the
// one-active-row-per-user rule. The partial unique index created by the
// migrations backs the same rule at the database level.
type SubscriptionStore struct {
	pool Pool
}

// NewSubscriptionStore wraps an open pool.
func NewSubscriptionStore(pool Pool) (*SubscriptionStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &SubscriptionStore{pool: pool}, nil
}

// Activate upserts sub. When sub is active, older active rows for the same
// user are deactivated first so the insert never trips the unique index.
func (s *SubscriptionStore) Activate(ctx context.Context, sub smartlink.Subscription) error {
	if sub.ID == "" {
		return fmt.Errorf("activate subscription: %w: id is required", smartlink.ErrInvalid)
	}
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("activate subscription: %w: %w", smartlink.ErrInvalid, err)
	}
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		if sub.Status == smartlink.StatusActive {
			if _, err := tx.Exec(ctx, `
				UPDATE subscriptions
				SET status = 'inactive', updated_at = now()
				WHERE user_id = $1 AND status = 'active' AND id <> $2;
			`, sub.UserID, sub.ID); err != nil {
				return fmt.Errorf("deactivate previous subscriptions: %w", err)
			}
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO subscriptions (
				id, user_id, tier, status,
				current_period_start, current_period_end,
				stripe_customer_id, stripe_subscription_id, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			ON CONFLICT (id) DO UPDATE SET
				tier = EXCLUDED.tier,
				status = EXCLUDED.status,
				current_period_start = EXCLUDED.current_period_start,
				current_period_end = EXCLUDED.current_period_end,
				stripe_customer_id = EXCLUDED.stripe_customer_id,
				stripe_subscription_id = EXCLUDED.stripe_subscription_id,
				updated_at = now();
		`,
			sub.ID,
			sub.UserID,
			string(sub.Tier),
			string(sub.Status),
			nullableTime(sub.PeriodStart),
			nullableTime(sub.PeriodEnd),
			nullableString(sub.StripeCustomerID),
			nullableString(sub.StripeSubscriptionID),
		); err != nil {
			return fmt.Errorf("upsert subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("activate subscription %s: %w", sub.ID, err)
	}
	return nil
}

// Active returns the user's active subscription.
func (s *SubscriptionStore) Active(ctx context.Context, userID string) (smartlink.Subscription, error) {
	var (
		sub         smartlink.Subscription
		tier        string
		status      string
		periodStart *time.Time
		periodEnd   *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT
			id::text,
			user_id::text,
			tier,
			status,
			current_period_start,
			current_period_end,
			COALESCE(stripe_customer_id, ''),
			COALESCE(stripe_subscription_id, ''),
			updated_at
		FROM subscriptions
		WHERE user_id = $1 AND status = 'active'
		ORDER BY updated_at DESC
		LIMIT 1;
	`, userID).Scan(
		&sub.ID,
		&sub.UserID,
		&tier,
		&status,
		&periodStart,
		&periodEnd,
		&sub.StripeCustomerID,
		&sub.StripeSubscriptionID,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return smartlink.Subscription{}, fmt.Errorf("active subscription for %s: %w", userID, smartlink.ErrNotFound)
		}
		return smartlink.Subscription{}, fmt.Errorf("active subscription for %s: %w", userID, err)
	}
	sub.Tier = smartlink.Tier(tier)
	sub.Status = smartlink.SubscriptionStatus(status)
	if periodStart != nil {
		sub.PeriodStart = *periodStart
	}
	if periodEnd != nil {
		sub.PeriodEnd = *periodEnd
	}
	return sub, nil
}
