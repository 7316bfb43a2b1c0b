package sitemap

import (
	"context"
	"encoding/xml"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/smartlink-preview/internal/metrics"
	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
	"github.com/JakeFAU/smartlink-preview/internal/storage/memory"
)

type fakeLister struct {
	mu      sync.Mutex
	entries []smartlink.SitemapEntry
	calls   []string
	err     error
}

func (f *fakeLister) ListSitemapEntries(_ context.Context, after string, limit int) ([]smartlink.SitemapEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, after)
	if f.err != nil {
		return nil, f.err
	}
	var out []smartlink.SitemapEntry
	for _, e := range f.entries {
		if e.Slug > after {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// cursorLister pages entries in their stored order, like a database using a
// collation other than byte order.
type cursorLister struct {
	entries []smartlink.SitemapEntry
	stuck   bool
}

func (c *cursorLister) ListSitemapEntries(_ context.Context, after string, limit int) ([]smartlink.SitemapEntry, error) {
	start := 0
	if after != "" && !c.stuck {
		for i, e := range c.entries {
			if e.Slug == after {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, len(c.entries))
	return c.entries[start:end], nil
}

func (f *fakeLister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newBuilder(t *testing.T, lister Lister, cfg Config) *Builder {
	t.Helper()
	metrics.Init()
	if cfg.Origin == "" {
		cfg.Origin = "https://soundraiser.io/"
	}
	b, err := New(lister, cfg, zap.NewNop())
	require.NoError(t, err)
	return b
}

func TestBuildPagesThroughAllEntries(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)
	lister := &fakeLister{entries: []smartlink.SitemapEntry{
		{Slug: "a-side", UpdatedAt: ts},
		{Slug: "b-side", UpdatedAt: ts},
		{Slug: "c-side"},
	}}
	b := newBuilder(t, lister, Config{BatchSize: 2})

	doc, err := b.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"", "b-side"}, lister.calls)

	var set urlSet
	require.NoError(t, xml.Unmarshal(doc, &set))
	require.Len(t, set.URLs, 3)
	require.Equal(t, "https://soundraiser.io/link/a-side", set.URLs[0].Loc)
	require.Equal(t, "2024-05-01", set.URLs[0].LastMod)
	require.Empty(t, set.URLs[2].LastMod)
	require.Contains(t, string(doc), `xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"`)
}

func TestBuildPagesAcrossHyphenOrdering(t *testing.T) {
	t.Parallel()

	lister := &cursorLister{entries: []smartlink.SitemapEntry{
		{Slug: "ab"}, {Slug: "a-c"}, {Slug: "b"},
	}}
	b := newBuilder(t, lister, Config{BatchSize: 1})

	doc, err := b.Build(context.Background())
	require.NoError(t, err)

	var set urlSet
	require.NoError(t, xml.Unmarshal(doc, &set))
	require.Len(t, set.URLs, 3)
	require.Equal(t, "https://soundraiser.io/link/a-c", set.URLs[1].Loc)
}

func TestBuildRejectsListingThatDoesNotAdvance(t *testing.T) {
	t.Parallel()

	lister := &cursorLister{entries: []smartlink.SitemapEntry{{Slug: "a"}, {Slug: "b"}}, stuck: true}
	b := newBuilder(t, lister, Config{BatchSize: 2})

	_, err := b.Build(context.Background())
	require.Error(t, err)
}

func TestBuildEscapesSlugs(t *testing.T) {
	t.Parallel()

	b := newBuilder(t, &fakeLister{entries: []smartlink.SitemapEntry{{Slug: "rock&roll"}}}, Config{})
	doc, err := b.Build(context.Background())
	require.NoError(t, err)
	require.Contains(t, string(doc), "<loc>https://soundraiser.io/link/rock&amp;roll</loc>")
}

func TestBuildPropagatesListingErrors(t *testing.T) {
	t.Parallel()

	b := newBuilder(t, &fakeLister{err: errors.New("db down")}, Config{})
	_, err := b.Build(context.Background())
	require.ErrorContains(t, err, "db down")
}

func TestCachedServesUntilTTL(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{entries: []smartlink.SitemapEntry{{Slug: "one"}}}
	b := newBuilder(t, lister, Config{CacheTTL: time.Hour})
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	first, err := b.Cached(context.Background())
	require.NoError(t, err)
	second, err := b.Cached(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, lister.callCount())

	now = now.Add(2 * time.Hour)
	_, err = b.Cached(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, lister.callCount())

	b.Invalidate()
	_, err = b.Cached(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, lister.callCount())
}

func TestPublishWritesToBlobStore(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	b := newBuilder(t, &fakeLister{entries: []smartlink.SitemapEntry{{Slug: "one"}}}, Config{})

	uri, err := b.Publish(context.Background(), blobs, "sitemaps/sitemap.xml")
	require.NoError(t, err)
	require.Equal(t, "memory://sitemaps/sitemap.xml", uri)

	data, contentType, ok := blobs.Object("sitemaps/sitemap.xml")
	require.True(t, ok)
	require.Equal(t, ContentType, contentType)
	require.Contains(t, string(data), "/link/one")
}

func TestRobots(t *testing.T) {
	t.Parallel()

	body := string(Robots("https://soundraiser.io/"))
	require.Contains(t, body, "User-agent: *")
	require.Contains(t, body, "Sitemap: https://soundraiser.io/sitemap.xml")
}

func TestNewRejectsBadOrigin(t *testing.T) {
	t.Parallel()

	_, err := New(&fakeLister{}, Config{Origin: "soundraiser"}, nil)
	require.Error(t, err)
}
