// Package resolver turns slugs into normalized preview metadata. A Service
// wraps one strategy (Postgres, memory or the remote edge function) with a
// per-attempt timeout, retries and normalization.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/smartlink-preview/internal/metrics"
	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

// Config tunes a Service.
type Config struct {
	// Strategy labels metrics and logs, e.g. "postgres".
	Strategy string
	// Origin absolutizes relative artwork URLs.
	Origin string
	// Timeout bounds each attempt.
	Timeout time.Duration
	// Retry decides on retries; nil means a single attempt.
	Retry RetryPolicy
}

// Service resolves metadata through a single strategy.
type Service struct {
	strategy smartlink.MetadataResolver
	cfg      Config
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// New builds a Service around strategy.
func New(strategy smartlink.MetadataResolver, cfg Config, logger *zap.Logger) (*Service, error) {
	if strategy == nil {
		return nil, fmt.Errorf("resolver strategy is required")
	}
	if cfg.Origin == "" {
		return nil, fmt.Errorf("site origin is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Retry == nil {
		cfg.Retry = NewExponentialRetryPolicy(1, 0, 0)
	}
	if cfg.Strategy == "" {
		cfg.Strategy = "custom"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		strategy: strategy,
		cfg:      cfg,
		logger:   logger.Named("resolver"),
		sleep:    sleepContext,
	}, nil
}

// Resolve normalizes slug, resolves it with retries and returns normalized
// metadata. Errors wrap smartlink.ErrInvalid, ErrNotFound or ErrUpstream.
func (s *Service) Resolve(ctx context.Context, raw string) (smartlink.Metadata, error) {
	slug, err := smartlink.NormalizeSlug(raw)
	if err != nil {
		metrics.ObserveResolve(s.cfg.Strategy, metrics.OutcomeInvalid, 0)
		return smartlink.Metadata{}, err
	}

	start := time.Now()
	for attempt := 1; ; attempt++ {
		md, err := s.attempt(ctx, slug)
		if err == nil {
			metrics.ObserveResolve(s.cfg.Strategy, metrics.OutcomeResolved, time.Since(start))
			if md.Slug == "" {
				md.Slug = slug
			}
			return md.Normalize(s.cfg.Origin), nil
		}
		if !s.cfg.Retry.ShouldRetry(ctx, err, attempt) {
			metrics.ObserveResolve(s.cfg.Strategy, outcomeFor(err), time.Since(start))
			return smartlink.Metadata{}, classify(slug, err)
		}
		wait := s.cfg.Retry.Backoff(attempt)
		s.logger.Warn("resolve attempt failed; retrying",
			zap.String("slug", slug),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		metrics.ObserveResolveRetry(s.cfg.Strategy)
		if sleepErr := s.sleep(ctx, wait); sleepErr != nil {
			metrics.ObserveResolve(s.cfg.Strategy, metrics.OutcomeError, time.Since(start))
			return smartlink.Metadata{}, classify(slug, sleepErr)
		}
	}
}

func (s *Service) attempt(ctx context.Context, slug string) (smartlink.Metadata, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return s.strategy.Resolve(attemptCtx, slug)
}

// classify makes sure every returned error wraps one of the sentinels the
// handlers switch on.
func classify(slug string, err error) error {
	switch {
	case errors.Is(err, smartlink.ErrNotFound), errors.Is(err, smartlink.ErrInvalid), errors.Is(err, smartlink.ErrUpstream):
		return fmt.Errorf("resolve %s: %w", slug, err)
	default:
		return fmt.Errorf("resolve %s: %w: %w", slug, smartlink.ErrUpstream, err)
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, smartlink.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, smartlink.ErrInvalid):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
