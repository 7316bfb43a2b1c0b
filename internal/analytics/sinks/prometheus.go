package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/smartlink-preview/internal/metrics"
	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

// PrometheusSink counts flushed events and tracks how long they waited in
// the hub.
type PrometheusSink struct {
	flushed *prometheus.CounterVec
	lag     prometheus.Histogram
	now     func() time.Time
}

// NewPrometheusSink registers the sink collectors against reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		flushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartlink_analytics_flushed_total",
			Help: "Events flushed from the analytics hub, partitioned by kind and client.",
		}, []string{"kind", "client"}),
		lag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smartlink_analytics_flush_lag_seconds",
			Help:    "Delay between an event occurring and its flush.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),
		now: time.Now,
	}
	for _, c := range []prometheus.Collector{s.flushed, s.lag} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register analytics collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []smartlink.Event) error {
	now := s.now()
	for _, evt := range batch {
		s.flushed.WithLabelValues(string(evt.Kind), metrics.ClientLabel(evt.Bot)).Inc()
		if !evt.OccurredAt.IsZero() {
			s.lag.Observe(now.Sub(evt.OccurredAt).Seconds())
		}
		if !evt.Bot {
			metrics.ObserveEvent(string(evt.Kind), string(evt.Platform), evt.Referrer)
		}
	}
	return nil
}

// Close implements analytics.Sink.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
