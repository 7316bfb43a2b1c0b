package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

var linkColumns = []string{
	"id", "user_id", "slug", "title", "artist_name", "artwork_url", "description", "release_date", "updated_at",
}

func TestLinkStoreGetBySlugLoadsPlatforms(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewLinkStore(mock)
	require.NoError(t, err)

	updated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM smart_links").
		WithArgs("midnight").
		WillReturnRows(pgxmock.NewRows(linkColumns).
			AddRow("link-1", "user-1", "midnight", "Midnight", "Nova", "/art.jpg", "", "2024-05-01", updated))
	mock.ExpectQuery("FROM platform_links").
		WithArgs("link-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "platform", "url", "position", "enabled"}).
			AddRow("pl-1", "spotify", "https://open.spotify.com/track/1", 0, true).
			AddRow("pl-2", "apple", "https://music.apple.com/1", 1, false))

	link, err := store.GetBySlug(context.Background(), "midnight")
	require.NoError(t, err)
	require.Equal(t, "Midnight", link.Title)
	require.Equal(t, "Nova", link.ArtistName)
	require.Equal(t, "2024-05-01", link.ReleaseDate)
	require.Equal(t, updated, link.UpdatedAt)
	require.Len(t, link.Platforms, 2)
	require.Equal(t, smartlink.PlatformApple, link.Platforms[1].Platform)
	require.False(t, link.Platforms[1].Enabled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkStoreGetBySlugNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewLinkStore(mock)
	require.NoError(t, err)

	mock.ExpectQuery("FROM smart_links").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.GetBySlug(context.Background(), "ghost")
	require.ErrorIs(t, err, smartlink.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkStoreGetBySlugUpstreamError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewLinkStore(mock)
	require.NoError(t, err)

	mock.ExpectQuery("FROM smart_links").
		WithArgs("midnight").
		WillReturnError(errors.New("connection reset"))

	_, err = store.GetBySlug(context.Background(), "midnight")
	require.ErrorIs(t, err, smartlink.ErrUpstream)
	require.NotErrorIs(t, err, smartlink.ErrNotFound)
}

func TestLinkStoreGetByIDRejectsMalformedID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewLinkStore(mock)
	require.NoError(t, err)

	_, err = store.GetByID(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, smartlink.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkStoreListSitemapEntries(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewLinkStore(mock)
	require.NoError(t, err)

	ts := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery(`SELECT slug, updated_at(.|\n)*WHERE slug COLLATE "C" > \$1(.|\n)*ORDER BY slug COLLATE "C"`).
		WithArgs("b", 2).
		WillReturnRows(pgxmock.NewRows([]string{"slug", "updated_at"}).
			AddRow("c", ts).
			AddRow("d", ts))

	entries, err := store.ListSitemapEntries(context.Background(), "b", 2)
	require.NoError(t, err)
	require.Equal(t, []smartlink.SitemapEntry{{Slug: "c", UpdatedAt: ts}, {Slug: "d", UpdatedAt: ts}}, entries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkStoreReplacePlatformsCommits(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewLinkStore(mock)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE platform_links").
		WithArgs(0, true, "link-1", "apple").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE platform_links").
		WithArgs(1, false, "link-1", "spotify").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE smart_links").
		WithArgs("link-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = store.ReplacePlatforms(context.Background(), "link-1", []smartlink.PlatformLink{
		{Platform: smartlink.PlatformApple, Position: 0, Enabled: true},
		{Platform: smartlink.PlatformSpotify, Position: 1, Enabled: false},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkStoreReplacePlatformsRollsBackUnknownPlatform(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewLinkStore(mock)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE platform_links").
		WithArgs(0, true, "link-1", "tidal").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err = store.ReplacePlatforms(context.Background(), "link-1", []smartlink.PlatformLink{
		{Platform: smartlink.PlatformTidal, Position: 0, Enabled: true},
	})
	require.ErrorIs(t, err, smartlink.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewLinkStoreRequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewLinkStore(nil)
	require.Error(t, err)
}
