package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "/sitemaps/sitemap.xml", "application/xml", bytes.NewBufferString("<urlset/>"))
	require.NoError(t, err)
	require.Equal(t, "memory://sitemaps/sitemap.xml", uri)

	data, contentType, ok := store.Object("sitemaps/sitemap.xml")
	require.True(t, ok)
	require.Equal(t, "application/xml", contentType)
	require.Equal(t, "<urlset/>", string(data))

	data[0] = 'X'
	again, _, _ := store.Object("sitemaps/sitemap.xml")
	require.Equal(t, "<urlset/>", string(again))
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().PutObject(context.Background(), " ", "text/plain", bytes.NewBufferString("x"))
	require.Error(t, err)

	_, _, ok := NewBlobStore().Object("missing")
	require.False(t, ok)
}
