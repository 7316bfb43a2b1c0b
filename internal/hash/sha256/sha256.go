// Package sha256 derives strong HTTP entity tags from response bodies.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// tagBytes is how much of the digest ends up in the tag.
const tagBytes = 16

// ETag returns a quoted strong validator for body.
func ETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `"` + hex.EncodeToString(sum[:tagBytes]) + `"`
}

// Matches reports whether an If-None-Match header value names etag. The
// comparison is weak, so W/ prefixes are ignored; "*" matches any tag.
func Matches(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" || etag == "" {
		return false
	}
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}
