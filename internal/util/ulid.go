package util

import (
	"github.com/oklog/ulid/v2"
)

// NewULID generates a new ULID string. Session ids must not be guessable, so
// entropy comes from ulid.Make's crypto/rand-backed monotonic source.
func NewULID() string {
	return ulid.Make().String()
}

// IsULID reports whether s is a well-formed ULID.
func IsULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
