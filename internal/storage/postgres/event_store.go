package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

// EventStore persists view and click events and aggregates them per link.
type EventStore struct {
	pool Pool
}

// NewEventStore wraps an open pool.
func NewEventStore(pool Pool) (*EventStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &EventStore{pool: pool}, nil
}

// InsertEvents writes a batch of events in one transaction. Replayed events
// with an existing id are ignored.
func (s *EventStore) InsertEvents(ctx context.Context, events []smartlink.Event) error {
	if len(events) == 0 {
		return nil
	}
	for _, evt := range events {
		if err := evt.Validate(); err != nil {
			return fmt.Errorf("event %s: %w: %w", evt.ID, smartlink.ErrInvalid, err)
		}
	}
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, evt := range events {
			if err := insertEvent(ctx, tx, evt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert events: %w", err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, evt smartlink.Event) error {
	var err error
	switch evt.Kind {
	case smartlink.EventClick:
		_, err = tx.Exec(ctx, `
			INSERT INTO click_events (id, smart_link_id, platform, referrer, user_agent, is_bot, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING;
		`,
			evt.ID,
			evt.LinkID,
			string(evt.Platform),
			nullableString(evt.Referrer),
			nullableString(evt.UserAgent),
			evt.Bot,
			evt.OccurredAt,
		)
	default:
		_, err = tx.Exec(ctx, `
			INSERT INTO view_events (id, smart_link_id, referrer, user_agent, is_bot, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING;
		`,
			evt.ID,
			evt.LinkID,
			nullableString(evt.Referrer),
			nullableString(evt.UserAgent),
			evt.Bot,
			evt.OccurredAt,
		)
	}
	if err != nil {
		return fmt.Errorf("insert %s event %s: %w", evt.Kind, evt.ID, err)
	}
	return nil
}

// LinkStats returns totals, per-day counts and clicks per platform for events
// at or after since. Bot traffic is excluded.
func (s *EventStore) LinkStats(ctx context.Context, linkID string, since time.Time) (smartlink.LinkStats, error) {
	stats := smartlink.LinkStats{ClicksByPlatform: map[smartlink.Platform]int64{}}

	rows, err := s.pool.Query(ctx, `
		SELECT day, SUM(views)::bigint, SUM(clicks)::bigint
		FROM (
			SELECT to_char(occurred_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, 1 AS views, 0 AS clicks
			FROM view_events
			WHERE smart_link_id = $1 AND occurred_at >= $2 AND NOT is_bot
			UNION ALL
			SELECT to_char(occurred_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, 0 AS views, 1 AS clicks
			FROM click_events
			WHERE smart_link_id = $1 AND occurred_at >= $2 AND NOT is_bot
		) AS e
		GROUP BY day
		ORDER BY day;
	`, linkID, since)
	if err != nil {
		return smartlink.LinkStats{}, fmt.Errorf("query daily stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var day smartlink.DailyCount
		if err := rows.Scan(&day.Day, &day.Views, &day.Clicks); err != nil {
			return smartlink.LinkStats{}, fmt.Errorf("scan daily stats: %w", err)
		}
		stats.Views += day.Views
		stats.Clicks += day.Clicks
		stats.Daily = append(stats.Daily, day)
	}
	if err := rows.Err(); err != nil {
		return smartlink.LinkStats{}, fmt.Errorf("iterate daily stats: %w", err)
	}

	platformRows, err := s.pool.Query(ctx, `
		SELECT platform, COUNT(*)
		FROM click_events
		WHERE smart_link_id = $1 AND occurred_at >= $2 AND NOT is_bot
		GROUP BY platform
		ORDER BY platform;
	`, linkID, since)
	if err != nil {
		return smartlink.LinkStats{}, fmt.Errorf("query platform stats: %w", err)
	}
	defer platformRows.Close()
	for platformRows.Next() {
		var (
			platform string
			count    int64
		)
		if err := platformRows.Scan(&platform, &count); err != nil {
			return smartlink.LinkStats{}, fmt.Errorf("scan platform stats: %w", err)
		}
		stats.ClicksByPlatform[smartlink.Platform(platform)] = count
	}
	if err := platformRows.Err(); err != nil {
		return smartlink.LinkStats{}, fmt.Errorf("iterate platform stats: %w", err)
	}
	return stats, nil
}
