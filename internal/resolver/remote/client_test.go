package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

func TestResolveJSON(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, metaPath, r.URL.Path)
		require.Equal(t, "midnight", r.URL.Query().Get("slug"))
		require.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"title": "Midnight",
			"artistName": "Nova",
			"artwork_url": "/art/midnight.jpg",
			"releaseDate": "2024-05-01",
			"platforms": [{"platform": "spotify", "url": "https://open.spotify.com/1"}, {"platform": "apple"}]
		}`))
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, Token: "anon-key", Mode: ModeJSON, Timeout: time.Second})
	require.NoError(t, err)

	md, err := client.Resolve(context.Background(), "midnight")
	require.NoError(t, err)
	require.Equal(t, smartlink.Metadata{
		Slug:        "midnight",
		Title:       "Midnight",
		ArtistName:  "Nova",
		ArtworkURL:  "/art/midnight.jpg",
		ReleaseDate: "2024-05-01",
		Platforms: []smartlink.PlatformLink{
			{Platform: smartlink.PlatformSpotify, URL: "https://open.spotify.com/1", Enabled: true},
		},
	}, md)
}

func TestResolveHTMLScrapesMetaTags(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, renderPath, r.URL.Path)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<!doctype html><html><head>
			<title>Midnight by Nova | Soundraiser</title>
			<meta property="og:title" content="Midnight by Nova | Soundraiser">
			<meta property="og:description" content="A late night record.">
			<meta property="og:image" content="https://cdn.example/midnight.jpg">
			<meta property="music:release_date" content="2024-05-01">
			</head><body></body></html>`))
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, Mode: ModeHTML})
	require.NoError(t, err)

	md, err := client.Resolve(context.Background(), "midnight")
	require.NoError(t, err)
	require.Equal(t, "Midnight", md.Title)
	require.Equal(t, "Nova", md.ArtistName)
	require.Equal(t, "A late night record.", md.Description)
	require.Equal(t, "https://cdn.example/midnight.jpg", md.ArtworkURL)
	require.Equal(t, "2024-05-01", md.ReleaseDate)
}

func TestResolveMapsStatuses(t *testing.T) {
	t.Parallel()

	tests := map[int]error{
		http.StatusNotFound:            smartlink.ErrNotFound,
		http.StatusInternalServerError: smartlink.ErrUpstream,
		http.StatusUnauthorized:        smartlink.ErrUpstream,
	}
	for status, want := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		client, err := New(Config{BaseURL: server.URL})
		require.NoError(t, err)

		_, err = client.Resolve(context.Background(), "midnight")
		require.ErrorIs(t, err, want, "status %d", status)
		server.Close()
	}
}

func TestResolveBadJSONIsUpstream(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL})
	require.NoError(t, err)
	_, err = client.Resolve(context.Background(), "midnight")
	require.ErrorIs(t, err, smartlink.ErrUpstream)
}

func TestResolveHonorsContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client, err := New(Config{BaseURL: server.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Resolve(ctx, "midnight")
	require.ErrorIs(t, err, smartlink.ErrUpstream)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolveConcurrentCallsShareClient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "smartlink-test/1.0", r.UserAgent())
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"title": %q}`, r.URL.Query().Get("slug"))
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, UserAgent: "smartlink-test/1.0", Timeout: time.Second})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			slug := fmt.Sprintf("track-%d", i)
			md, err := client.Resolve(context.Background(), slug)
			if err == nil && md.Title != slug {
				err = fmt.Errorf("got title %q for %s", md.Title, slug)
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestResolveAppliesRequestTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client, err := New(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = client.Resolve(context.Background(), "slow")
	require.ErrorIs(t, err, smartlink.ErrUpstream)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(Config{BaseURL: "not a url"})
	require.Error(t, err)
	_, err = New(Config{BaseURL: "https://x.supabase.co", Mode: "xml"})
	require.Error(t, err)

	client, err := New(Config{BaseURL: "https://x.supabase.co/", Mode: ModeHTML})
	require.NoError(t, err)
	require.Equal(t, "https://x.supabase.co/functions/v1/render-smart-link?slug=a+b", client.Endpoint("a b"))
}
