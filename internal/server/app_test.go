package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/smartlink-preview/internal/config"
	memorystorage "github.com/JakeFAU/smartlink-preview/internal/storage/memory"
)

const fixture = `{
  "links": [
    {
      "id": "0190a8f0-0000-7000-8000-000000000001",
      "user_id": "0190a8f0-0000-7000-8000-0000000000aa",
      "slug": "midnight-drive",
      "title": "Midnight Drive",
      "artist_name": "Nova",
      "artwork_url": "/art/midnight.jpg",
      "updated_at": "2024-05-01T10:00:00Z",
      "platforms": [
        {"platform": "spotify", "url": "https://open.spotify.com/track/1", "position": 0, "enabled": true}
      ]
    }
  ]
}`

func testConfig(t *testing.T) config.Config {
	t.Helper()

	path := filepath.Join(t.TempDir(), "links.json")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o600))

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Resolver.FixturePath = path
	cfg.Site.Origin = "https://soundraiser.io"
	cfg.Analytics.Batch.MaxWaitMs = 10
	return cfg
}

func buildTestApp(t *testing.T, cfg config.Config) *App {
	t.Helper()

	app, err := build(context.Background(), cfg, zap.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, app.Close(ctx))
	})
	return app
}

func TestBuildInMemoryServesPreview(t *testing.T) {
	app := buildTestApp(t, testConfig(t))

	req := httptest.NewRequest(http.MethodGet, "/preview/midnight-drive", nil)
	req.Header.Set("User-Agent", "facebookexternalhit/1.1")
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "Midnight Drive")
	require.Contains(t, body, "https://soundraiser.io/art/midnight.jpg")
}

func TestBuildWiresEventRecording(t *testing.T) {
	app := buildTestApp(t, testConfig(t))

	req := httptest.NewRequest(http.MethodPost, "/api/events/click",
		strings.NewReader(`{"slug":"midnight-drive","platform":"spotify"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	events, ok := app.events.(*memorystorage.EventStore)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		return len(events.Events()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBuildWithoutAnalyticsRejectsEvents(t *testing.T) {
	cfg := testConfig(t)
	cfg.Analytics.Enabled = false
	app := buildTestApp(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/events/view", strings.NewReader(`{"slug":"midnight-drive"}`))
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSitemapPublishesToLocalStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "local"
	cfg.Storage.Local.BaseDir = t.TempDir()
	app := buildTestApp(t, cfg)

	location, err := app.PublishSitemap(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, location)

	f, err := os.Open(filepath.Join(cfg.Storage.Local.BaseDir, cfg.Sitemap.ObjectPath))
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Contains(t, string(data), "https://soundraiser.io/link/midnight-drive")
}

func TestBuildRejectsPostgresStrategyWithoutPool(t *testing.T) {
	cfg := testConfig(t)
	cfg.Resolver.Strategy = config.StrategyPostgres

	_, err := build(context.Background(), cfg, zap.NewNop(), prometheus.NewRegistry())
	require.Error(t, err)
}

func TestBuildRejectsMissingFixture(t *testing.T) {
	cfg := testConfig(t)
	cfg.Resolver.FixturePath = filepath.Join(t.TempDir(), "missing.json")

	_, err := build(context.Background(), cfg, zap.NewNop(), prometheus.NewRegistry())
	require.Error(t, err)
}
