// Package render produces the Open Graph preview document served to social
// crawlers. A single template covers resolved and fallback pages; every
// interpolated value goes through html/template's contextual escaping.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

//go:embed templates/preview.html.tmpl
var templateFS embed.FS

// Config describes the site the previews point back to.
type Config struct {
	// SiteName is appended to every og:title, e.g. "Soundraiser".
	SiteName string
	// SiteOrigin is the scheme+host used for absolute URLs.
	SiteOrigin string
	// AppPath is the SPA route prefix for smart links, e.g. "/link/".
	AppPath string
	// DefaultImage is used when no artwork is known.
	DefaultImage string
	// RedirectDelay postpones the client-side navigation; zero is immediate.
	RedirectDelay time.Duration
}

// Renderer renders preview pages.
type Renderer struct {
	cfg  Config
	tmpl *template.Template
}

type platformView struct {
	Label string
	URL   string
}

type pageView struct {
	PageTitle       string
	Heading         string
	Description     string
	Image           string
	URL             string
	AppURL          string
	SiteName        string
	ReleaseDate     string
	Platforms       []platformView
	RedirectDelayMs int64
}

// New parses the embedded template.
func New(cfg Config) (*Renderer, error) {
	if strings.TrimSpace(cfg.SiteName) == "" {
		return nil, fmt.Errorf("site name is required")
	}
	if _, err := url.ParseRequestURI(cfg.SiteOrigin); err != nil {
		return nil, fmt.Errorf("invalid site origin %q: %w", cfg.SiteOrigin, err)
	}
	if cfg.AppPath == "" {
		cfg.AppPath = "/link/"
	}
	if !strings.HasSuffix(cfg.AppPath, "/") {
		cfg.AppPath += "/"
	}
	if cfg.RedirectDelay < 0 {
		cfg.RedirectDelay = 0
	}
	tmpl, err := template.ParseFS(templateFS, "templates/preview.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse preview template: %w", err)
	}
	return &Renderer{cfg: cfg, tmpl: tmpl}, nil
}

// AppURL is the absolute SPA URL for slug.
func (r *Renderer) AppURL(slug string) string {
	return strings.TrimRight(r.cfg.SiteOrigin, "/") + r.cfg.AppPath + url.PathEscape(slug)
}

// OGTitle joins title, artist and site name the way share cards show them.
func (r *Renderer) OGTitle(title, artist string) string {
	if artist == "" {
		return fmt.Sprintf("%s | %s", title, r.cfg.SiteName)
	}
	return fmt.Sprintf("%s by %s | %s", title, artist, r.cfg.SiteName)
}

// Page renders a resolved smart link. md is expected to be normalized.
func (r *Renderer) Page(md smartlink.Metadata) ([]byte, error) {
	heading := md.Title
	if md.ArtistName != "" {
		heading = md.Title + " by " + md.ArtistName
	}
	image := md.ArtworkURL
	if image == "" {
		image = smartlink.AbsoluteURL(r.cfg.SiteOrigin, r.cfg.DefaultImage)
	}
	view := r.baseView(md.Slug)
	view.PageTitle = r.OGTitle(md.Title, md.ArtistName)
	view.Heading = heading
	view.Description = md.Description
	view.Image = image
	view.ReleaseDate = md.ReleaseDate
	for _, p := range md.Platforms {
		if !p.Enabled || p.URL == "" {
			continue
		}
		view.Platforms = append(view.Platforms, platformView{Label: p.Platform.Label(), URL: p.URL})
	}
	return r.execute(view)
}

// Fallback renders the generic page used when metadata is unavailable. The
// title is derived from the slug.
func (r *Renderer) Fallback(slug string) ([]byte, error) {
	title := smartlink.TitleFromSlug(slug)
	if title == "" {
		title = r.cfg.SiteName
	}
	view := r.baseView(slug)
	view.PageTitle = r.OGTitle(title, "")
	view.Heading = title
	view.Description = smartlink.FallbackDescription(title)
	view.Image = smartlink.AbsoluteURL(r.cfg.SiteOrigin, r.cfg.DefaultImage)
	return r.execute(view)
}

func (r *Renderer) baseView(slug string) pageView {
	appURL := r.AppURL(slug)
	return pageView{
		URL:             appURL,
		AppURL:          appURL,
		SiteName:        r.cfg.SiteName,
		RedirectDelayMs: r.cfg.RedirectDelay.Milliseconds(),
	}
}

func (r *Renderer) execute(view pageView) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "preview.html.tmpl", view); err != nil {
		return nil, fmt.Errorf("execute preview template: %w", err)
	}
	return buf.Bytes(), nil
}
