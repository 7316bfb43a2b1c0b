package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(Config{
		SiteName:     "Soundraiser",
		SiteOrigin:   "https://soundraiser.io",
		AppPath:      "/link",
		DefaultImage: "og-default.png",
	})
	require.NoError(t, err)
	return r
}

func TestPage_OpenGraphTags(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t)
	md := smartlink.Metadata{
		Slug:        "midnight",
		Title:       "Midnight",
		ArtistName:  "Nova",
		ArtworkURL:  "foo.jpg",
		ReleaseDate: "2024-05-01",
	}.Normalize("https://soundraiser.io")

	out, err := r.Page(md)
	require.NoError(t, err)
	html := string(out)

	require.Contains(t, html, `<title>Midnight by Nova | Soundraiser</title>`)
	require.Contains(t, html, `<meta property="og:title" content="Midnight by Nova | Soundraiser">`)
	require.Contains(t, html, `<meta property="og:type" content="music.song">`)
	require.Contains(t, html, `<meta property="og:image" content="https://soundraiser.io/foo.jpg">`)
	require.Contains(t, html, `<meta property="og:url" content="https://soundraiser.io/link/midnight">`)
	require.Contains(t, html, `<meta property="music:release_date" content="2024-05-01">`)
	require.Contains(t, html, `<meta name="twitter:card" content="summary_large_image">`)
	require.Contains(t, html, `<meta name="twitter:title" content="Midnight by Nova | Soundraiser">`)
	require.Contains(t, html, `Stream or download Midnight by Nova. Available on Spotify, Apple Music, and more streaming platforms.`)
	require.Contains(t, html, `window.location.replace(target)`)
	require.Contains(t, html, `var target = `)
	require.Contains(t, html, `"https://soundraiser.io/link/midnight"`)
}

func TestPage_EscapesInjectedValues(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t)
	md := smartlink.Metadata{
		Slug:        "x",
		Title:       `"><script>alert(1)</script>`,
		ArtistName:  `<img src=x onerror=alert(2)>`,
		Description: `</title><script>alert(3)</script>`,
		ArtworkURL:  `https://cdn.example/a.jpg"><script>alert(4)</script>`,
	}
	out, err := r.Page(md)
	require.NoError(t, err)
	html := string(out)

	require.NotContains(t, html, `"><script>`)
	require.NotContains(t, html, `<script>alert`)
	require.NotContains(t, html, `<img src=x`)
	require.NotContains(t, html, `</title><script>`)
	require.Equal(t, 1, strings.Count(html, "<script>"), "only the redirect script may appear")
}

func TestPage_PlatformLinks(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t)
	md := smartlink.Metadata{
		Slug:       "midnight",
		Title:      "Midnight",
		ArtistName: "Nova",
		Platforms: []smartlink.PlatformLink{
			{Platform: smartlink.PlatformSpotify, URL: "https://open.spotify.com/track/1", Enabled: true},
			{Platform: smartlink.PlatformApple, URL: "javascript:alert(1)", Enabled: true},
			{Platform: smartlink.PlatformTidal, URL: "https://tidal.com/1", Enabled: false},
		},
	}
	out, err := r.Page(md)
	require.NoError(t, err)
	html := string(out)

	require.Contains(t, html, `<a href="https://open.spotify.com/track/1" rel="noopener">Spotify</a>`)
	require.NotContains(t, html, "javascript:alert")
	require.NotContains(t, html, "tidal.com")
}

func TestFallback_UsesSlugTitle(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t)
	out, err := r.Fallback("midnight-drive")
	require.NoError(t, err)
	html := string(out)

	require.Contains(t, html, `<meta property="og:title" content="Midnight Drive | Soundraiser">`)
	require.Contains(t, html, `<meta property="og:type" content="music.song">`)
	require.Contains(t, html, `<meta property="og:image" content="https://soundraiser.io/og-default.png">`)
	require.Contains(t, html, `Listen to Midnight Drive on Spotify, Apple Music, and more streaming platforms.`)
	require.Contains(t, html, `<meta property="og:url" content="https://soundraiser.io/link/midnight-drive">`)
}

func TestRedirectDelay(t *testing.T) {
	t.Parallel()

	r, err := New(Config{
		SiteName:      "Soundraiser",
		SiteOrigin:    "https://soundraiser.io",
		RedirectDelay: 1500 * time.Millisecond,
	})
	require.NoError(t, err)
	out, err := r.Fallback("a")
	require.NoError(t, err)
	require.Contains(t, string(out), "1500")
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{SiteOrigin: "https://soundraiser.io"})
	require.Error(t, err)
	_, err = New(Config{SiteName: "Soundraiser", SiteOrigin: "not a url"})
	require.Error(t, err)
}

func TestAppURL_EscapesSlug(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t)
	require.Equal(t, "https://soundraiser.io/link/a%20b", r.AppURL("a b"))
}
