// Package sinks holds the analytics.Sink implementations.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

// LogSink writes one structured log line per event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("events")}
}

// Consume logs each event.
func (s *LogSink) Consume(_ context.Context, batch []smartlink.Event) error {
	for _, evt := range batch {
		s.logger.Info("analytics event",
			zap.String("id", evt.ID),
			zap.String("kind", string(evt.Kind)),
			zap.String("slug", evt.Slug),
			zap.String("link_id", evt.LinkID),
			zap.String("platform", string(evt.Platform)),
			zap.String("referrer", evt.Referrer),
			zap.Bool("bot", evt.Bot),
			zap.Time("occurred_at", evt.OccurredAt),
		)
	}
	return nil
}

// Close flushes buffered log entries. Sync errors on console outputs are
// expected and ignored.
func (s *LogSink) Close(context.Context) error {
	_ = s.logger.Sync()
	return nil
}
