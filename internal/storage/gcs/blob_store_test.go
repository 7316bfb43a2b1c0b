package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "sitemaps", CacheControl: "public, max-age=21600"})
	require.NoError(t, err)
	return store
}

func TestPutObjectUploadsToBucket(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/sitemaps/o")
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), "<urlset/>")
		assert.Contains(t, string(body), "public, max-age=21600")
		fmt.Fprintln(w, `{"name": "sitemap.xml", "bucket": "sitemaps"}`)
	})
	store := newTestStore(t, handler)

	uri, err := store.PutObject(context.Background(), "/sitemap.xml", "application/xml", bytes.NewBufferString("<urlset/>"))
	require.NoError(t, err)
	require.Equal(t, "gs://sitemaps/sitemap.xml", uri)
}

func TestPutObjectSurfacesServerErrors(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	store := newTestStore(t, handler)

	_, err := store.PutObject(context.Background(), "sitemap.xml", "application/xml", bytes.NewBufferString("<urlset/>"))
	require.Error(t, err)
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()
	_, err = New(client, Config{})
	require.Error(t, err)

	_, err = (&BlobStore{client: client, bucket: "b"}).PutObject(context.Background(), " ", "", bytes.NewBufferString("x"))
	require.Error(t, err)
}
