package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

// LinkStore keeps smart links in memory, keyed by slug.
type LinkStore struct {
	mu     sync.RWMutex
	bySlug map[string]smartlink.SmartLink
	byID   map[string]string
	now    func() time.Time
}

// NewLinkStore seeds a store with links.
func NewLinkStore(links ...smartlink.SmartLink) *LinkStore {
	s := &LinkStore{
		bySlug: make(map[string]smartlink.SmartLink, len(links)),
		byID:   make(map[string]string, len(links)),
		now:    time.Now,
	}
	for _, link := range links {
		s.Put(link)
	}
	return s
}

type fixtureFile struct {
	Links []fixtureLink `json:"links"`
}

type fixtureLink struct {
	ID          string                   `json:"id"`
	UserID      string                   `json:"user_id"`
	Slug        string                   `json:"slug"`
	Title       string                   `json:"title"`
	ArtistName  string                   `json:"artist_name"`
	ArtworkURL  string                   `json:"artwork_url"`
	Description string                   `json:"description"`
	ReleaseDate string                   `json:"release_date"`
	UpdatedAt   time.Time                `json:"updated_at"`
	Platforms   []smartlink.PlatformLink `json:"platforms"`
}

// LoadLinkStore reads a JSON fixture of the form {"links": [...]}.
func LoadLinkStore(path string) (*LinkStore, error) {
	// #nosec G304 -- fixture path comes from operator configuration.
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read link fixture: %w", err)
	}
	var file fixtureFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode link fixture %s: %w", path, err)
	}
	store := NewLinkStore()
	for i, fl := range file.Links {
		if fl.Slug == "" {
			return nil, fmt.Errorf("link fixture %s: entry %d has no slug", path, i)
		}
		store.Put(smartlink.SmartLink{
			ID:          fl.ID,
			UserID:      fl.UserID,
			Slug:        fl.Slug,
			Title:       fl.Title,
			ArtistName:  fl.ArtistName,
			ArtworkURL:  fl.ArtworkURL,
			Description: fl.Description,
			ReleaseDate: fl.ReleaseDate,
			UpdatedAt:   fl.UpdatedAt,
			Platforms:   fl.Platforms,
		})
	}
	return store, nil
}

// Put inserts or replaces a link. Links without an id use the slug as id.
func (s *LinkStore) Put(link smartlink.SmartLink) {
	if link.ID == "" {
		link.ID = link.Slug
	}
	sortPlatforms(link.Platforms)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySlug[link.Slug] = cloneLink(link)
	s.byID[link.ID] = link.Slug
}

// GetBySlug implements smartlink.LinkStore.
func (s *LinkStore) GetBySlug(_ context.Context, slug string) (smartlink.SmartLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.bySlug[slug]
	if !ok {
		return smartlink.SmartLink{}, smartlink.ErrNotFound
	}
	return cloneLink(link), nil
}

// GetByID implements smartlink.LinkStore.
func (s *LinkStore) GetByID(ctx context.Context, id string) (smartlink.SmartLink, error) {
	s.mu.RLock()
	slug, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return smartlink.SmartLink{}, smartlink.ErrNotFound
	}
	return s.GetBySlug(ctx, slug)
}

// ListSitemapEntries implements smartlink.LinkStore.
func (s *LinkStore) ListSitemapEntries(_ context.Context, afterSlug string, limit int) ([]smartlink.SitemapEntry, error) {
	s.mu.RLock()
	slugs := make([]string, 0, len(s.bySlug))
	for slug := range s.bySlug {
		if slug > afterSlug {
			slugs = append(slugs, slug)
		}
	}
	sort.Strings(slugs)
	if limit > 0 && len(slugs) > limit {
		slugs = slugs[:limit]
	}
	entries := make([]smartlink.SitemapEntry, 0, len(slugs))
	for _, slug := range slugs {
		entries = append(entries, smartlink.SitemapEntry{Slug: slug, UpdatedAt: s.bySlug[slug].UpdatedAt})
	}
	s.mu.RUnlock()
	return entries, nil
}

// ReplacePlatforms implements smartlink.LinkStore. The update is all or
// nothing: an unknown platform leaves the link untouched.
func (s *LinkStore) ReplacePlatforms(_ context.Context, linkID string, links []smartlink.PlatformLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slug, ok := s.byID[linkID]
	if !ok {
		return smartlink.ErrNotFound
	}
	link := cloneLink(s.bySlug[slug])
	for _, update := range links {
		idx := -1
		for i, existing := range link.Platforms {
			if existing.Platform == update.Platform {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("platform %s: %w", update.Platform, smartlink.ErrNotFound)
		}
		link.Platforms[idx].Position = update.Position
		link.Platforms[idx].Enabled = update.Enabled
	}
	sortPlatforms(link.Platforms)
	link.UpdatedAt = s.now().UTC()
	s.bySlug[slug] = link
	return nil
}

func sortPlatforms(links []smartlink.PlatformLink) {
	sort.SliceStable(links, func(i, j int) bool {
		if links[i].Position != links[j].Position {
			return links[i].Position < links[j].Position
		}
		return links[i].Platform < links[j].Platform
	})
}

func cloneLink(link smartlink.SmartLink) smartlink.SmartLink {
	link.Platforms = append([]smartlink.PlatformLink(nil), link.Platforms...)
	return link
}
