package local_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/smartlink-preview/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "sitemaps")
		store, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		assert.NotNil(t, store)
		assert.DirExists(t, dir)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsAFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	t.Run("WritesAndReplaces", func(t *testing.T) {
		for _, body := range []string{"<urlset>one</urlset>", "<urlset>two</urlset>"} {
			uri, err := store.PutObject(context.Background(), "public/sitemap.xml", "application/xml", bytes.NewBufferString(body))
			require.NoError(t, err)
			assert.Equal(t, "file://"+filepath.Join(dir, "public/sitemap.xml"), uri)

			// #nosec G304 -- test reads from the controlled temp directory.
			got, err := os.ReadFile(filepath.Join(dir, "public/sitemap.xml"))
			require.NoError(t, err)
			assert.Equal(t, body, string(got))
		}

		entries, err := os.ReadDir(filepath.Join(dir, "public"))
		require.NoError(t, err)
		assert.Len(t, entries, 1, "temp files must not be left behind")
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "", "text/plain", bytes.NewBufferString("data"))
		assert.Error(t, err)
	})

	t.Run("Traversal", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "../escape.xml", "text/plain", bytes.NewBufferString("data"))
		assert.Error(t, err)
	})
}
