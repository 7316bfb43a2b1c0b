// Package remote resolves smart link metadata through the deployed edge
// functions, either as JSON or by scraping the pre-rendered preview page.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

// Response modes.
const (
	ModeJSON = "json"
	ModeHTML = "html"
)

const (
	metaPath   = "/functions/v1/smart-link-meta"
	renderPath = "/functions/v1/render-smart-link"
)

// Config points the client at a Supabase-style functions host.
type Config struct {
	BaseURL   string
	Token     string
	Mode      string
	UserAgent string
	// Timeout bounds a single HTTP exchange. The caller's context still wins
	// when it is shorter.
	Timeout time.Duration
}

// Client implements smartlink.MetadataResolver over HTTP using colly.
type Client struct {
	cfg           Config
	base          *url.URL
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnHTML(string, colly.HTMLCallback)
	OnError(colly.ErrorCallback)
}

// New validates cfg and prepares a reusable collector.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid remote base url %q", cfg.BaseURL)
	}
	switch cfg.Mode {
	case "":
		cfg.Mode = ModeJSON
	case ModeJSON, ModeHTML:
	default:
		return nil, fmt.Errorf("unknown remote mode %q", cfg.Mode)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	// Clones share this collector's http.Client, so the timeout is set once.
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	return &Client{cfg: cfg, base: base, baseCollector: c}, nil
}

// Endpoint returns the function URL used for slug in the configured mode.
func (c *Client) Endpoint(slug string) string {
	path := metaPath
	if c.cfg.Mode == ModeHTML {
		path = renderPath
	}
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = url.Values{"slug": {slug}}.Encode()
	return u.String()
}

// Resolve implements smartlink.MetadataResolver.
func (c *Client) Resolve(ctx context.Context, slug string) (smartlink.Metadata, error) {
	var (
		result  exchange
		scraped = scrapedMeta{tags: map[string]string{}}
	)
	collector := c.baseCollector.Clone()
	c.configureHooks(collector, &result, &scraped)

	if err := run(ctx, collector, c.Endpoint(slug)); err != nil {
		// On cancellation the visit goroutine may still be writing result.
		if ctx.Err() != nil || result.status == 0 {
			return smartlink.Metadata{}, fmt.Errorf("%w: fetch %s: %w", smartlink.ErrUpstream, slug, err)
		}
	}

	switch {
	case result.status == http.StatusNotFound:
		return smartlink.Metadata{}, fmt.Errorf("remote %s: %w", slug, smartlink.ErrNotFound)
	case result.status < 200 || result.status > 299:
		return smartlink.Metadata{}, fmt.Errorf("%w: remote %s returned status %d", smartlink.ErrUpstream, slug, result.status)
	}

	var (
		md  smartlink.Metadata
		err error
	)
	if c.cfg.Mode == ModeHTML {
		md, err = scraped.metadata()
	} else {
		md, err = decodeJSON(result.body)
	}
	if err != nil {
		return smartlink.Metadata{}, fmt.Errorf("%w: decode %s: %w", smartlink.ErrUpstream, slug, err)
	}
	md.Slug = slug
	return md, nil
}

type exchange struct {
	status int
	body   []byte
}

func (c *Client) configureHooks(hooks collectorHooks, result *exchange, scraped *scrapedMeta) {
	hooks.OnRequest(func(r *colly.Request) {
		if c.cfg.Token != "" {
			r.Headers.Set("Authorization", "Bearer "+c.cfg.Token)
			r.Headers.Set("apikey", c.cfg.Token)
		}
		if c.cfg.Mode == ModeHTML {
			r.Headers.Set("Accept", "text/html")
		} else {
			r.Headers.Set("Accept", "application/json")
		}
	})
	hooks.OnResponse(func(r *colly.Response) {
		result.status = r.StatusCode
		result.body = append([]byte(nil), r.Body...)
	})
	hooks.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			result.status = r.StatusCode
		}
	})
	hooks.OnHTML("title", func(e *colly.HTMLElement) {
		scraped.title = strings.TrimSpace(e.Text)
	})
	hooks.OnHTML("meta[property], meta[name]", func(e *colly.HTMLElement) {
		key := e.Attr("property")
		if key == "" {
			key = e.Attr("name")
		}
		if _, seen := scraped.tags[key]; !seen {
			scraped.tags[key] = strings.TrimSpace(e.Attr("content"))
		}
	})
}

func run(ctx context.Context, collector *colly.Collector, target string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("remote fetch canceled: %w", ctx.Err())
	case err := <-done:
		return err
	}
}

// payload accepts both the camelCase shape returned by smart-link-meta and
// the raw column names.
type payload struct {
	Title          string                   `json:"title"`
	ArtistName     string                   `json:"artistName"`
	ArtistNameRaw  string                   `json:"artist_name"`
	Description    string                   `json:"description"`
	ArtworkURL     string                   `json:"artworkUrl"`
	ArtworkURLRaw  string                   `json:"artwork_url"`
	ReleaseDate    string                   `json:"releaseDate"`
	ReleaseDateRaw string                   `json:"release_date"`
	Platforms      []smartlink.PlatformLink `json:"platforms"`
}

func decodeJSON(body []byte) (smartlink.Metadata, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return smartlink.Metadata{}, err
	}
	md := smartlink.Metadata{
		Title:       p.Title,
		ArtistName:  firstNonEmpty(p.ArtistName, p.ArtistNameRaw),
		Description: p.Description,
		ArtworkURL:  firstNonEmpty(p.ArtworkURL, p.ArtworkURLRaw),
		ReleaseDate: firstNonEmpty(p.ReleaseDate, p.ReleaseDateRaw),
	}
	// The function only returns live links, so enabled is implied.
	for _, pl := range p.Platforms {
		if pl.URL == "" {
			continue
		}
		pl.Enabled = true
		md.Platforms = append(md.Platforms, pl)
	}
	return md, nil
}

type scrapedMeta struct {
	title string
	tags  map[string]string
}

// metadata rebuilds Metadata from a rendered page. og:title follows the
// "{title} by {artist} | {site}" pattern.
func (s scrapedMeta) metadata() (smartlink.Metadata, error) {
	ogTitle := firstNonEmpty(s.tags["og:title"], s.tags["twitter:title"], s.title)
	if ogTitle == "" {
		return smartlink.Metadata{}, errors.New("page has no title")
	}
	if idx := strings.LastIndex(ogTitle, " | "); idx > 0 {
		ogTitle = ogTitle[:idx]
	}
	md := smartlink.Metadata{
		Title:       ogTitle,
		ArtistName:  s.tags["music:musician"],
		Description: firstNonEmpty(s.tags["og:description"], s.tags["description"]),
		ArtworkURL:  firstNonEmpty(s.tags["og:image"], s.tags["twitter:image"]),
		ReleaseDate: s.tags["music:release_date"],
	}
	if idx := strings.LastIndex(ogTitle, " by "); idx > 0 {
		md.Title = ogTitle[:idx]
		if md.ArtistName == "" {
			md.ArtistName = ogTitle[idx+len(" by "):]
		}
	}
	return md, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
		MaxIdleConns:          50,
		IdleConnTimeout:       90 * time.Second,
	}
}
