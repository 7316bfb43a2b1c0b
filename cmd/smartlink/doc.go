// Package main hosts the smartlink preview service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server answers crawler requests on /preview/{slug} and /s/{slug} with server-rendered
//     Open Graph HTML, and exposes the event ingestion, stats, platform ordering and subscription endpoints used by the
//     SPA and the billing backend.
//   - Resolution: internal/resolver wraps one strategy (Postgres, in-memory fixture or the remote edge functions) with
//     a per-attempt timeout and bounded exponential retry. Missing slugs never retry.
//   - Analytics: view and click events are enqueued on a non-blocking batching hub and fanned out to the Postgres event
//     store, Prometheus counters, Pub/Sub and optionally the log.
//   - Sitemap: /sitemap.xml is served from a TTL cache; `smartlink sitemap` publishes the same document to the
//     configured blob store (memory/local/GCS).
//   - Configuration & plumbing: Viper populates config from env/files after godotenv loads an optional .env; zap
//     provides structured logging; Prometheus metrics are exported via the metrics middleware and /metrics handler.
//
// Quick checklist:
//   - Configure env vars: SMARTLINK_SERVER_PORT, SMARTLINK_SITE_ORIGIN, SMARTLINK_RESOLVER_STRATEGY,
//     SMARTLINK_DATABASE_DSN, SMARTLINK_AUTH_JWT_SECRET and SMARTLINK_AUTH_API_KEY at minimum.
//   - Run locally: go run ./cmd/smartlink serve --config config.yaml (or rely solely on env overrides).
//   - Apply schema: smartlink migrate up, or set SMARTLINK_DATABASE_AUTO_MIGRATE=true.
package main
