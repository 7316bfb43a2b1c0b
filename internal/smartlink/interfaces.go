package smartlink

import (
	"context"
	"errors"
	"io"
	"time"
)

// Sentinel errors shared across stores, resolvers and handlers.
var (
	// ErrNotFound signals that the requested record does not exist.
	ErrNotFound = errors.New("smart link not found")
	// ErrUpstream signals that a datastore or remote function failed.
	ErrUpstream = errors.New("upstream unavailable")
	// ErrForbidden signals the caller may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalid signals malformed input.
	ErrInvalid = errors.New("invalid input")
)

// MetadataResolver turns a slug into renderable metadata.
type MetadataResolver interface {
	Resolve(ctx context.Context, slug string) (Metadata, error)
}

// LinkStore reads smart links and mutates their platform links.
type LinkStore interface {
	GetBySlug(ctx context.Context, slug string) (SmartLink, error)
	GetByID(ctx context.Context, id string) (SmartLink, error)
	// ListSitemapEntries pages through links ordered by slug, starting after
	// afterSlug (empty for the first page).
	ListSitemapEntries(ctx context.Context, afterSlug string, limit int) ([]SitemapEntry, error)
	// ReplacePlatforms rewrites position and enabled flags for the link's
	// platforms. Platforms not present in links are left untouched.
	ReplacePlatforms(ctx context.Context, linkID string, links []PlatformLink) error
}

// EventStore persists analytics events and serves aggregates.
type EventStore interface {
	InsertEvents(ctx context.Context, events []Event) error
	LinkStats(ctx context.Context, linkID string, since time.Time) (LinkStats, error)
}

// SubscriptionStore manages subscriptions while keeping at most one active
// row per user.
type SubscriptionStore interface {
	// Activate upserts sub. When sub is active every other active row for
	// the same user is deactivated in the same transaction.
	Activate(ctx context.Context, sub Subscription) error
	// Active returns the user's active subscription or ErrNotFound.
	Active(ctx context.Context, userID string) (Subscription, error)
}

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes analytics payloads to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces event and subscription IDs.
type IDGenerator interface {
	NewID() (string, error)
}
