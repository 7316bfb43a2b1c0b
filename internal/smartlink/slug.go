package smartlink

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxSlugLength = 200

// NormalizeSlug trims the slug and rejects empty or path-like values.
func NormalizeSlug(raw string) (string, error) {
	slug := strings.TrimSpace(raw)
	if slug == "" {
		return "", fmt.Errorf("%w: slug is required", ErrInvalid)
	}
	if len(slug) > maxSlugLength {
		return "", fmt.Errorf("%w: slug too long", ErrInvalid)
	}
	if strings.ContainsAny(slug, "/?#\\") {
		return "", fmt.Errorf("%w: slug contains reserved characters", ErrInvalid)
	}
	return slug, nil
}

// TitleFromSlug derives a display title from a slug: hyphens become spaces
// and every word is capitalized.
func TitleFromSlug(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool {
		return r == '-' || unicode.IsSpace(r)
	})
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// AbsoluteURL returns raw unchanged when it already starts with "http",
// otherwise it is joined onto origin.
func AbsoluteURL(origin, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "http") {
		return raw
	}
	return strings.TrimRight(origin, "/") + "/" + strings.TrimLeft(raw, "/")
}

// DefaultDescription is used when a release has no description of its own.
func DefaultDescription(title, artist string) string {
	return fmt.Sprintf(
		"Stream or download %s by %s. Available on Spotify, Apple Music, and more streaming platforms.",
		title, artist,
	)
}

// FallbackDescription is used when metadata could not be resolved.
func FallbackDescription(title string) string {
	return fmt.Sprintf("Listen to %s on Spotify, Apple Music, and more streaming platforms.", title)
}

// Normalize fills the description default and absolutizes the artwork URL.
func (m Metadata) Normalize(origin string) Metadata {
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		m.Title = TitleFromSlug(m.Slug)
	}
	m.ArtistName = strings.TrimSpace(m.ArtistName)
	if strings.TrimSpace(m.Description) == "" {
		if m.ArtistName == "" {
			m.Description = FallbackDescription(m.Title)
		} else {
			m.Description = DefaultDescription(m.Title, m.ArtistName)
		}
	}
	m.ArtworkURL = AbsoluteURL(origin, m.ArtworkURL)
	return m
}
