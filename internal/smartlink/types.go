// Package smartlink defines the domain model shared by the preview service:
// smart links, platform links, analytics events and subscriptions.
package smartlink

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SmartLink is a release landing page addressed by a unique slug.
type SmartLink struct {
	// ID is the internal UUID primary key.
	ID string
	// UserID identifies the owning account.
	UserID string
	// Slug is the human-readable public identifier.
	Slug string
	// Title is the release title.
	Title string
	// ArtistName is the credited artist.
	ArtistName string
	// ArtworkURL is absolute or relative to the site origin.
	ArtworkURL string
	// Description is optional free text.
	Description string
	// ReleaseDate is formatted YYYY-MM-DD, empty when unknown.
	ReleaseDate string
	// UpdatedAt drives sitemap lastmod values.
	UpdatedAt time.Time
	// Platforms holds the platform links ordered by position.
	Platforms []PlatformLink
}

// Platform names a streaming destination.
type Platform string

// Known platforms accepted when authoring or reordering links.
const (
	PlatformSpotify    Platform = "spotify"
	PlatformApple      Platform = "apple"
	PlatformYouTube    Platform = "youtube"
	PlatformYouTubeMus Platform = "youtube_music"
	PlatformDeezer     Platform = "deezer"
	PlatformTidal      Platform = "tidal"
	PlatformAmazon     Platform = "amazon"
	PlatformSoundCloud Platform = "soundcloud"
	PlatformBandcamp   Platform = "bandcamp"
	PlatformPandora    Platform = "pandora"
	PlatformAudiomack  Platform = "audiomack"
)

var knownPlatforms = map[Platform]string{
	PlatformSpotify:    "Spotify",
	PlatformApple:      "Apple Music",
	PlatformYouTube:    "YouTube",
	PlatformYouTubeMus: "YouTube Music",
	PlatformDeezer:     "Deezer",
	PlatformTidal:      "TIDAL",
	PlatformAmazon:     "Amazon Music",
	PlatformSoundCloud: "SoundCloud",
	PlatformBandcamp:   "Bandcamp",
	PlatformPandora:    "Pandora",
	PlatformAudiomack:  "Audiomack",
}

// ParsePlatform normalizes raw input and reports whether it is a known platform.
func ParsePlatform(raw string) (Platform, bool) {
	p := Platform(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := knownPlatforms[p]
	return p, ok
}

// Label returns the display name, falling back to the raw identifier.
func (p Platform) Label() string {
	if label, ok := knownPlatforms[p]; ok {
		return label
	}
	return string(p)
}

// PlatformLink is one outbound destination of a SmartLink.
type PlatformLink struct {
	ID       string   `json:"id,omitempty"`
	Platform Platform `json:"platform"`
	URL      string   `json:"url"`
	Position int      `json:"position"`
	Enabled  bool     `json:"enabled"`
}

// Metadata is the resolved, normalized view used to render previews.
type Metadata struct {
	Slug        string         `json:"slug"`
	Title       string         `json:"title"`
	ArtistName  string         `json:"artistName"`
	Description string         `json:"description"`
	ArtworkURL  string         `json:"artworkUrl"`
	ReleaseDate string         `json:"releaseDate,omitempty"`
	Platforms   []PlatformLink `json:"platforms,omitempty"`
}

// MetadataFromLink copies the renderable fields of a SmartLink. Disabled
// platform links are dropped.
func MetadataFromLink(link SmartLink) Metadata {
	md := Metadata{
		Slug:        link.Slug,
		Title:       link.Title,
		ArtistName:  link.ArtistName,
		Description: link.Description,
		ArtworkURL:  link.ArtworkURL,
		ReleaseDate: link.ReleaseDate,
	}
	for _, p := range link.Platforms {
		if p.Enabled {
			md.Platforms = append(md.Platforms, p)
		}
	}
	return md
}

// SitemapEntry is the minimal projection needed to emit a sitemap URL.
type SitemapEntry struct {
	Slug      string
	UpdatedAt time.Time
}

// EventKind distinguishes analytics rows.
type EventKind string

// Analytics event kinds.
const (
	EventView  EventKind = "view"
	EventClick EventKind = "click"
)

// Event is an append-only analytics record.
type Event struct {
	ID         string    `json:"id"`
	Kind       EventKind `json:"kind"`
	LinkID     string    `json:"link_id"`
	Slug       string    `json:"slug"`
	Platform   Platform  `json:"platform,omitempty"`
	Referrer   string    `json:"referrer,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Bot        bool      `json:"bot"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.ID == "" {
		return errors.New("event id is required")
	}
	if e.LinkID == "" {
		return errors.New("link id is required")
	}
	if e.OccurredAt.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case EventView:
	case EventClick:
		if e.Platform == "" {
			return errors.New("click requires platform")
		}
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return nil
}

// DailyCount is one day of aggregated activity.
type DailyCount struct {
	Day    string `json:"day"`
	Views  int64  `json:"views"`
	Clicks int64  `json:"clicks"`
}

// LinkStats aggregates analytics for a single SmartLink.
type LinkStats struct {
	Views            int64              `json:"views"`
	Clicks           int64              `json:"clicks"`
	ClicksByPlatform map[Platform]int64 `json:"clicks_by_platform"`
	Daily            []DailyCount       `json:"daily"`
}

// Tier is a subscription plan.
type Tier string

// Subscription tiers.
const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// SubscriptionStatus mirrors subscriptions.status.
type SubscriptionStatus string

// Subscription statuses.
const (
	StatusActive   SubscriptionStatus = "active"
	StatusInactive SubscriptionStatus = "inactive"
)

// Subscription records a user's billing plan. At most one row per user may
// be active at a time.
type Subscription struct {
	ID                   string             `json:"id"`
	UserID               string             `json:"user_id"`
	Tier                 Tier               `json:"tier"`
	Status               SubscriptionStatus `json:"status"`
	PeriodStart          time.Time          `json:"current_period_start"`
	PeriodEnd            time.Time          `json:"current_period_end"`
	StripeCustomerID     string             `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string             `json:"stripe_subscription_id,omitempty"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// Validate checks enum fields and the billing period.
func (s Subscription) Validate() error {
	if s.UserID == "" {
		return errors.New("user id is required")
	}
	switch s.Tier {
	case TierFree, TierPro:
	default:
		return fmt.Errorf("unknown tier %q", s.Tier)
	}
	switch s.Status {
	case StatusActive, StatusInactive:
	default:
		return fmt.Errorf("unknown status %q", s.Status)
	}
	if !s.PeriodEnd.IsZero() && s.PeriodEnd.Before(s.PeriodStart) {
		return errors.New("period end precedes period start")
	}
	return nil
}

// IsPro reports whether the subscription grants Pro features at now.
func (s Subscription) IsPro(now time.Time) bool {
	if s.Status != StatusActive || s.Tier != TierPro {
		return false
	}
	return s.PeriodEnd.IsZero() || now.Before(s.PeriodEnd)
}
