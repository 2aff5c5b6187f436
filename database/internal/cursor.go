// Package internal holds helpers shared by the metadata backends.
package internal

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// Cursor represents pagination cursor data for list operations. Rows are
// ordered by key, so the last key seen is enough to resume.
type Cursor struct {
	Key string
}

// EncodeCursor encodes the last key of a page to an opaque base64 string.
func EncodeCursor(key string) string {
	return base64.URLEncoding.EncodeToString([]byte(key))
}

// DecodeCursor decodes a pagination cursor string back to cursor data.
// An empty string decodes to the zero Cursor, which starts from the first key.
func DecodeCursor(cursor string) (Cursor, error) {
	if cursor == "" {
		return Cursor{}, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: invalid encoding: %w", err)
	}

	if len(decoded) == 0 {
		return Cursor{}, errors.New("decode cursor: empty key")
	}

	return Cursor{Key: string(decoded)}, nil
}

const (
	// DefaultListLimit is used when a ListQuery has no positive limit.
	DefaultListLimit = 100
	// MaxListLimit caps the page size of a single List call.
	MaxListLimit = 1000
)

// NormalizeLimit clamps a requested page size to [1, MaxListLimit].
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
