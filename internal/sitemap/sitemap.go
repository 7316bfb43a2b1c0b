// Package sitemap builds the sitemaps.org document listing every public smart
// link and keeps a cached copy for the HTTP handler.
package sitemap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/smartlink-preview/internal/metrics"
	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

// ContentType is served with sitemap documents.
const ContentType = "application/xml; charset=utf-8"

// Lister is the slice of smartlink.LinkStore the builder needs.
type Lister interface {
	ListSitemapEntries(ctx context.Context, afterSlug string, limit int) ([]smartlink.SitemapEntry, error)
}

// Config tunes a Builder.
type Config struct {
	// Origin is the public site, e.g. https://soundraiser.io.
	Origin string
	// AppPath prefixes each slug (default "/link/").
	AppPath string
	// BatchSize bounds each listing query (default 1000).
	BatchSize int
	// CacheTTL is how long a built document is served before rebuilding.
	CacheTTL time.Duration
}

type urlEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

type urlSet struct {
	XMLName xml.Name   `xml:"http://www.sitemaps.org/schemas/sitemap/0.9 urlset"`
	URLs    []urlEntry `xml:"url"`
}

// Builder pages through smart links and renders the sitemap.
type Builder struct {
	lister Lister
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu        sync.RWMutex
	cached    []byte
	refreshed time.Time
	// build serializes rebuilds so an expired cache triggers one query run.
	build sync.Mutex
}

// New validates cfg and returns a Builder.
func New(lister Lister, cfg Config, logger *zap.Logger) (*Builder, error) {
	if lister == nil {
		return nil, fmt.Errorf("sitemap lister is required")
	}
	if _, err := url.ParseRequestURI(cfg.Origin); err != nil {
		return nil, fmt.Errorf("invalid sitemap origin %q: %w", cfg.Origin, err)
	}
	cfg.Origin = strings.TrimRight(cfg.Origin, "/")
	if cfg.AppPath == "" {
		cfg.AppPath = "/link/"
	}
	if !strings.HasSuffix(cfg.AppPath, "/") {
		cfg.AppPath += "/"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{lister: lister, cfg: cfg, logger: logger.Named("sitemap"), now: time.Now}, nil
}

// Cached returns the cached document, rebuilding it once the TTL elapsed.
func (b *Builder) Cached(ctx context.Context) ([]byte, error) {
	if doc, ok := b.fresh(); ok {
		return doc, nil
	}
	b.build.Lock()
	defer b.build.Unlock()
	if doc, ok := b.fresh(); ok {
		return doc, nil
	}
	doc, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.cached = doc
	b.refreshed = b.now()
	b.mu.Unlock()
	return doc, nil
}

func (b *Builder) fresh() ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.cached == nil || b.cfg.CacheTTL <= 0 {
		return nil, false
	}
	if b.now().Sub(b.refreshed) >= b.cfg.CacheTTL {
		return nil, false
	}
	return b.cached, true
}

// Invalidate drops the cached document.
func (b *Builder) Invalidate() {
	b.mu.Lock()
	b.cached = nil
	b.mu.Unlock()
}

// Build lists every smart link and renders a fresh document, bypassing the
// cache.
func (b *Builder) Build(ctx context.Context) ([]byte, error) {
	set := urlSet{}
	after := ""
	for {
		entries, err := b.lister.ListSitemapEntries(ctx, after, b.cfg.BatchSize)
		if err != nil {
			metrics.ObserveSitemapBuild(err, 0)
			return nil, fmt.Errorf("list sitemap entries after %q: %w", after, err)
		}
		for _, e := range entries {
			set.URLs = append(set.URLs, b.entry(e))
		}
		if len(entries) < b.cfg.BatchSize {
			break
		}
		next := entries[len(entries)-1].Slug
		if next == after {
			err := fmt.Errorf("sitemap listing did not advance past %q", after)
			metrics.ObserveSitemapBuild(err, 0)
			return nil, err
		}
		after = next
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		metrics.ObserveSitemapBuild(err, 0)
		return nil, fmt.Errorf("marshal sitemap: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(len(xml.Header) + len(out) + 1)
	buf.WriteString(xml.Header)
	buf.Write(out)
	buf.WriteByte('\n')

	metrics.ObserveSitemapBuild(nil, len(set.URLs))
	b.logger.Info("sitemap built", zap.Int("urls", len(set.URLs)))
	return buf.Bytes(), nil
}

// Publish builds the document and writes it to store under path.
func (b *Builder) Publish(ctx context.Context, store smartlink.BlobStore, path string) (string, error) {
	if store == nil {
		return "", fmt.Errorf("blob store is required")
	}
	doc, err := b.Build(ctx)
	if err != nil {
		return "", err
	}
	uri, err := store.PutObject(ctx, path, ContentType, bytes.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("publish sitemap: %w", err)
	}
	b.logger.Info("sitemap published", zap.String("uri", uri))
	return uri, nil
}

func (b *Builder) entry(e smartlink.SitemapEntry) urlEntry {
	out := urlEntry{Loc: b.cfg.Origin + b.cfg.AppPath + url.PathEscape(e.Slug)}
	if !e.UpdatedAt.IsZero() {
		out.LastMod = e.UpdatedAt.UTC().Format("2006-01-02")
	}
	return out
}

// Robots returns a robots.txt body that allows everything and points at the
// sitemap.
func Robots(origin string) []byte {
	origin = strings.TrimRight(origin, "/")
	return []byte("User-agent: *\nAllow: /\nDisallow: /api/\nDisallow: /internal/\n\nSitemap: " + origin + "/sitemap.xml\n")
}
