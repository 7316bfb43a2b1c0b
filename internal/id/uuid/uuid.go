// Package uuid generates and recognizes the UUIDs used for events,
// subscriptions and request ids.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates time-ordered UUIDv7 strings so event rows cluster by
// insertion time.
type Generator struct{}

// New creates a Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUIDv7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// RequestID returns a fresh id for X-Request-ID, falling back to a random
// UUIDv4 if the v7 clock sequence cannot be read.
func RequestID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// IsUUID reports whether s parses as a UUID in any accepted form.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
