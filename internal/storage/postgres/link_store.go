package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

const selectLinkColumns = `
SELECT
	id::text,
	COALESCE(user_id::text, ''),
	slug,
	COALESCE(title, ''),
	COALESCE(artist_name, ''),
	COALESCE(artwork_url, ''),
	COALESCE(description, ''),
	COALESCE(to_char(release_date, 'YYYY-MM-DD'), ''),
	updated_at
FROM smart_links`

// LinkStore implements smartlink.LinkStore on the smart_links and
// platform_links tables.
type LinkStore struct {
	pool Pool
}

// NewLinkStore wraps an open pool.
func NewLinkStore(pool Pool) (*LinkStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &LinkStore{pool: pool}, nil
}

// GetBySlug loads a smart link and its platform links by slug.
func (s *LinkStore) GetBySlug(ctx context.Context, slug string) (smartlink.SmartLink, error) {
	link, err := s.getOne(ctx, selectLinkColumns+` WHERE slug = $1`, slug)
	if err != nil {
		return smartlink.SmartLink{}, fmt.Errorf("get link by slug: %w", err)
	}
	return link, nil
}

// GetByID loads a smart link by its UUID. Malformed ids are reported as not
// found without touching the database.
func (s *LinkStore) GetByID(ctx context.Context, id string) (smartlink.SmartLink, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return smartlink.SmartLink{}, fmt.Errorf("get link by id: %w", smartlink.ErrNotFound)
	}
	link, err := s.getOne(ctx, selectLinkColumns+` WHERE id = $1`, parsed.String())
	if err != nil {
		return smartlink.SmartLink{}, fmt.Errorf("get link by id: %w", err)
	}
	return link, nil
}

func (s *LinkStore) getOne(ctx context.Context, query string, arg string) (smartlink.SmartLink, error) {
	var link smartlink.SmartLink
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&link.ID,
		&link.UserID,
		&link.Slug,
		&link.Title,
		&link.ArtistName,
		&link.ArtworkURL,
		&link.Description,
		&link.ReleaseDate,
		&link.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return smartlink.SmartLink{}, smartlink.ErrNotFound
		}
		return smartlink.SmartLink{}, fmt.Errorf("%w: %w", smartlink.ErrUpstream, err)
	}
	platforms, err := s.platforms(ctx, link.ID)
	if err != nil {
		return smartlink.SmartLink{}, err
	}
	link.Platforms = platforms
	return link, nil
}

func (s *LinkStore) platforms(ctx context.Context, linkID string) ([]smartlink.PlatformLink, error) {
	query := `
		SELECT id::text, platform, url, position, enabled
		FROM platform_links
		WHERE smart_link_id = $1
		ORDER BY position, platform;
	`
	rows, err := s.pool.Query(ctx, query, linkID)
	if err != nil {
		return nil, fmt.Errorf("%w: list platform links: %w", smartlink.ErrUpstream, err)
	}
	defer rows.Close()

	var links []smartlink.PlatformLink
	for rows.Next() {
		var (
			pl       smartlink.PlatformLink
			platform string
		)
		if err := rows.Scan(&pl.ID, &platform, &pl.URL, &pl.Position, &pl.Enabled); err != nil {
			return nil, fmt.Errorf("scan platform link: %w", err)
		}
		pl.Platform = smartlink.Platform(platform)
		links = append(links, pl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate platform links: %w", smartlink.ErrUpstream, err)
	}
	return links, nil
}

// ListSitemapEntries returns up to limit links after afterSlug in byte order
// of slug, whatever the database's default collation.
func (s *LinkStore) ListSitemapEntries(
	ctx context.Context,
	afterSlug string,
	limit int,
) ([]smartlink.SitemapEntry, error) {
	query := `
		SELECT slug, updated_at
		FROM smart_links
		WHERE slug COLLATE "C" > $1
		ORDER BY slug COLLATE "C"
		LIMIT $2;
	`
	rows, err := s.pool.Query(ctx, query, afterSlug, limit)
	if err != nil {
		return nil, fmt.Errorf("list sitemap entries: %w", err)
	}
	defer rows.Close()

	entries := make([]smartlink.SitemapEntry, 0, limit)
	for rows.Next() {
		var entry smartlink.SitemapEntry
		if err := rows.Scan(&entry.Slug, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan sitemap entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sitemap entries: %w", err)
	}
	return entries, nil
}

// ReplacePlatforms updates position and enabled for each given platform in a
// single transaction. An unknown platform aborts the whole update.
func (s *LinkStore) ReplacePlatforms(ctx context.Context, linkID string, links []smartlink.PlatformLink) error {
	if len(links) == 0 {
		return nil
	}
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, pl := range links {
			tag, err := tx.Exec(ctx, `
				UPDATE platform_links
				SET position = $1, enabled = $2
				WHERE smart_link_id = $3 AND platform = $4;
			`, pl.Position, pl.Enabled, linkID, string(pl.Platform))
			if err != nil {
				return fmt.Errorf("update platform %s: %w", pl.Platform, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("platform %s: %w", pl.Platform, smartlink.ErrNotFound)
			}
		}
		if _, err := tx.Exec(ctx, `UPDATE smart_links SET updated_at = now() WHERE id = $1;`, linkID); err != nil {
			return fmt.Errorf("touch smart link: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace platforms: %w", err)
	}
	return nil
}
