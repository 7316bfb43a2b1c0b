package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/smartlink-preview/internal/id/uuid"
	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
)

// StoreStrategy resolves metadata from a LinkStore: by slug first, then by id
// when the slug is a UUID. It serves both the postgres and memory strategies.
type StoreStrategy struct {
	links smartlink.LinkStore
}

// NewStoreStrategy wraps links.
func NewStoreStrategy(links smartlink.LinkStore) (*StoreStrategy, error) {
	if links == nil {
		return nil, fmt.Errorf("link store is required")
	}
	return &StoreStrategy{links: links}, nil
}

// Resolve implements smartlink.MetadataResolver.
func (s *StoreStrategy) Resolve(ctx context.Context, slug string) (smartlink.Metadata, error) {
	link, err := s.links.GetBySlug(ctx, slug)
	if errors.Is(err, smartlink.ErrNotFound) && uuid.IsUUID(slug) {
		link, err = s.links.GetByID(ctx, slug)
	}
	if err != nil {
		return smartlink.Metadata{}, err
	}
	return smartlink.MetadataFromLink(link), nil
}
