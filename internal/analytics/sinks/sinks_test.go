package sinks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/smartlink-preview/internal/metrics"
	pubmemory "github.com/JakeFAU/smartlink-preview/internal/publisher/memory"
	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
	"github.com/JakeFAU/smartlink-preview/internal/storage/memory"
)

var occurred = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func batch() []smartlink.Event {
	return []smartlink.Event{
		{ID: "1", Kind: smartlink.EventView, LinkID: "l1", Slug: "midnight", Referrer: "https://www.instagram.com/p/1", OccurredAt: occurred},
		{ID: "2", Kind: smartlink.EventClick, LinkID: "l1", Slug: "midnight", Platform: smartlink.PlatformSpotify, OccurredAt: occurred},
		{ID: "3", Kind: smartlink.EventView, LinkID: "l1", Slug: "midnight", Bot: true, OccurredAt: occurred},
	}
}

func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()
	metrics.Init()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	sink.now = func() time.Time { return occurred.Add(2 * time.Second) }

	require.NoError(t, sink.Consume(context.Background(), batch()))
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.flushed.WithLabelValues("view", "human")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.flushed.WithLabelValues("view", "bot")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.flushed.WithLabelValues("click", "human")), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.lag, "smartlink_analytics_flush_lag_seconds"))

	_, err = NewPrometheusSink(reg)
	require.Error(t, err, "duplicate registration must fail")
}

func TestStoreSinkPersistsBatch(t *testing.T) {
	t.Parallel()

	store := memory.NewEventStore()
	sink := NewStoreSink(store)
	require.NoError(t, sink.Consume(context.Background(), batch()))
	require.Len(t, store.Events(), 3)
	require.NoError(t, sink.Close(context.Background()))
}

type failingStore struct{}

func (failingStore) InsertEvents(context.Context, []smartlink.Event) error {
	return errors.New("db down")
}

func (failingStore) LinkStats(context.Context, string, time.Time) (smartlink.LinkStats, error) {
	return smartlink.LinkStats{}, nil
}

func TestStoreSinkWrapsErrors(t *testing.T) {
	t.Parallel()

	err := NewStoreSink(failingStore{}).Consume(context.Background(), batch())
	require.ErrorContains(t, err, "persist 3 events")
}

func TestPublisherSinkPublishesEachEvent(t *testing.T) {
	t.Parallel()

	pub := pubmemory.New(0)
	sink := NewPublisherSink(pub, "smartlink-events")
	require.NoError(t, sink.Consume(context.Background(), batch()))

	msgs := pub.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, "smartlink-events", msgs[1].Topic)
	require.Contains(t, string(msgs[1].Data), `"platform":"spotify"`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, sink.Consume(ctx, batch()))
}

func TestLogSinkWritesFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))
	require.NoError(t, sink.Consume(context.Background(), batch()[:1]))

	entries := logs.FilterMessage("analytics event").All()
	require.Len(t, entries, 1)
	require.Equal(t, "midnight", entries[0].ContextMap()["slug"])
}
