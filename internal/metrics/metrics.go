// Package metrics exposes Prometheus collectors for the preview service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Preview outcomes recorded by ObservePreview.
const (
	OutcomeResolved = "resolved"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
	OutcomeRedirect = "redirect"
	OutcomeInvalid  = "invalid"
)

var (
	previewRendersTotal        *prometheus.CounterVec
	resolverRequestsTotal      *prometheus.CounterVec
	resolverDurationSeconds    *prometheus.HistogramVec
	resolverRetriesTotal       *prometheus.CounterVec
	analyticsEventsTotal       *prometheus.CounterVec
	analyticsReferralsTotal    *prometheus.CounterVec
	analyticsDroppedTotal      prometheus.Counter
	sitemapBuildsTotal         *prometheus.CounterVec
	sitemapURLs                prometheus.Gauge
	rateLimitedTotal           *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		previewRendersTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartlink_preview_renders_total",
				Help: "Preview responses, labeled by outcome and client class.",
			},
			[]string{"outcome", "client"},
		)

		resolverRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartlink_resolver_requests_total",
				Help: "Metadata resolutions, labeled by strategy and result.",
			},
			[]string{"strategy", "result"},
		)

		resolverDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smartlink_resolver_duration_seconds",
				Help:    "Histogram of metadata resolution latency including retries.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"strategy"},
		)

		resolverRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartlink_resolver_retries_total",
				Help: "Retried metadata resolution attempts, labeled by strategy.",
			},
			[]string{"strategy"},
		)

		analyticsEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartlink_analytics_events_total",
				Help: "Analytics events flushed, labeled by kind and platform.",
			},
			[]string{"kind", "platform"},
		)

		analyticsReferralsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartlink_analytics_referrals_total",
				Help: "Views by referrer host.",
			},
			[]string{"host"},
		)

		analyticsDroppedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "smartlink_analytics_dropped_total",
				Help: "Analytics events dropped due to backpressure.",
			},
		)

		sitemapBuildsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartlink_sitemap_builds_total",
				Help: "Sitemap builds, labeled by result.",
			},
			[]string{"result"},
		)

		sitemapURLs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "smartlink_sitemap_urls",
				Help: "Number of URLs in the most recent sitemap.",
			},
		)

		rateLimitedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartlink_rate_limited_total",
				Help: "Requests rejected by the per-client limiter, labeled by route.",
			},
			[]string{"route"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ClientLabel maps the crawler classification to a label value.
func ClientLabel(bot bool) string {
	if bot {
		return "bot"
	}
	return "human"
}

// ReferrerHost extracts a lowercase hostname from a referrer. Empty referrers
// are "direct"; unparsable ones are "unknown".
func ReferrerHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "direct"
	}
	if !strings.HasPrefix(raw, "http") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// ObservePreview counts a preview response.
func ObservePreview(outcome string, bot bool) {
	previewRendersTotal.WithLabelValues(outcome, ClientLabel(bot)).Inc()
}

// ObserveResolve records one resolution including all of its attempts.
func ObserveResolve(strategy, result string, duration time.Duration) {
	resolverRequestsTotal.WithLabelValues(strategy, result).Inc()
	resolverDurationSeconds.WithLabelValues(strategy).Observe(duration.Seconds())
}

// ObserveResolveRetry counts a retried attempt.
func ObserveResolveRetry(strategy string) {
	resolverRetriesTotal.WithLabelValues(strategy).Inc()
}

// ObserveEvent counts a flushed analytics event.
func ObserveEvent(kind, platform, referrer string) {
	if platform == "" {
		platform = "none"
	}
	analyticsEventsTotal.WithLabelValues(kind, platform).Inc()
	if kind == "view" {
		analyticsReferralsTotal.WithLabelValues(ReferrerHost(referrer)).Inc()
	}
}

// ObserveEventsDropped adds n dropped events.
func ObserveEventsDropped(n int64) {
	if n > 0 {
		analyticsDroppedTotal.Add(float64(n))
	}
}

// ObserveSitemapBuild records a sitemap build and its size.
func ObserveSitemapBuild(err error, urls int) {
	if err != nil {
		sitemapBuildsTotal.WithLabelValues("error").Inc()
		return
	}
	sitemapBuildsTotal.WithLabelValues("ok").Inc()
	sitemapURLs.Set(float64(urls))
}

// ObserveRateLimited counts a rejected request.
func ObserveRateLimited(route string) {
	rateLimitedTotal.WithLabelValues(route).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
