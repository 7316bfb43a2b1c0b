// Package api hosts the HTTP server, middleware, and handlers of the preview
// service. Notable routes:
//   - GET /preview/{slug} and /s/{slug} for crawler-facing Open Graph pages.
//   - GET /api/smart-links/{slug}/meta for resolved metadata as JSON.
//   - POST /api/events/view and /api/events/click for analytics ingestion.
//   - GET /api/smart-links/{slug}/stats and PUT .../platforms for owners.
//   - PUT/GET /internal/subscriptions/{user_id} for billing integrations.
//   - GET /sitemap.xml, /robots.txt, /healthz, /readyz and /metrics.
package api
