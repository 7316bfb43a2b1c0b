package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

func TestEventStoreInsertEventsRoutesByKind(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewEventStore(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	events := []smartlink.Event{
		{ID: "evt-1", Kind: smartlink.EventView, LinkID: "link-1", Referrer: "https://t.co/x", OccurredAt: now},
		{ID: "evt-2", Kind: smartlink.EventClick, LinkID: "link-1", Platform: smartlink.PlatformSpotify, Bot: true, OccurredAt: now},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO view_events").
		WithArgs("evt-1", "link-1", "https://t.co/x", nil, false, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO click_events").
		WithArgs("evt-2", "link-1", "spotify", nil, nil, true, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.InsertEvents(context.Background(), events))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStoreInsertEventsRejectsInvalidBatch(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewEventStore(mock)
	require.NoError(t, err)

	err = store.InsertEvents(context.Background(), []smartlink.Event{
		{ID: "evt-1", Kind: smartlink.EventClick, LinkID: "link-1", OccurredAt: time.Now()},
	})
	require.ErrorIs(t, err, smartlink.ErrInvalid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStoreLinkStatsAggregates(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewEventStore(mock)
	require.NoError(t, err)

	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM view_events").
		WithArgs("link-1", since).
		WillReturnRows(pgxmock.NewRows([]string{"day", "views", "clicks"}).
			AddRow("2024-05-01", int64(10), int64(3)).
			AddRow("2024-05-02", int64(4), int64(1)))
	mock.ExpectQuery("GROUP BY platform").
		WithArgs("link-1", since).
		WillReturnRows(pgxmock.NewRows([]string{"platform", "count"}).
			AddRow("apple", int64(1)).
			AddRow("spotify", int64(3)))

	stats, err := store.LinkStats(context.Background(), "link-1", since)
	require.NoError(t, err)
	require.Equal(t, int64(14), stats.Views)
	require.Equal(t, int64(4), stats.Clicks)
	require.Len(t, stats.Daily, 2)
	require.Equal(t, smartlink.DailyCount{Day: "2024-05-02", Views: 4, Clicks: 1}, stats.Daily[1])
	require.Equal(t, map[smartlink.Platform]int64{"apple": 1, "spotify": 3}, stats.ClicksByPlatform)
	require.NoError(t, mock.ExpectationsWereMet())
}
