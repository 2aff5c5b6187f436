package blobkeep

import (
	"fmt"
	"strings"
)

// MaxKeyLength is the longest key accepted, bounded by the filename limit
// of common filesystems since a key is stored as a single file name.
const MaxKeyLength = 255

// IsValidKey reports whether k satisfies the key grammar:
//   - 1 to MaxKeyLength bytes
//   - only ASCII letters, digits, '.', '-' and '_'
//   - first character is a letter or digit
//   - no ".." anywhere
//
// Separators, NUL and anything outside the set above are rejected, so a
// valid key always names a single entry directly under the storage root.
func IsValidKey(k string) bool {
	if k == "" || len(k) > MaxKeyLength {
		return false
	}

	if !isAlnum(k[0]) {
		return false
	}

	if strings.Contains(k, "..") {
		return false
	}

	for i := 0; i < len(k); i++ {
		c := k[i]
		if isAlnum(c) || c == '.' || c == '-' || c == '_' {
			continue
		}
		return false
	}

	return true
}

// ValidateKey returns an error wrapping ErrInvalidKey when k is not a valid key.
func ValidateKey(k string) error {
	if k == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	if !IsValidKey(k) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, k)
	}
	return nil
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
