package blobkeep

import "errors"

var (
	// ErrInvalidKey is returned when a key fails the key grammar. It is
	// raised before any filesystem access.
	ErrInvalidKey = errors.New("invalid key")
	// ErrNotFound is returned when no blob exists for a key
	ErrNotFound = errors.New("not found")
	// ErrStorageUnavailable wraps filesystem and metadata index failures
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrContentRead is returned when the content of a put could not be read
	// to the end, e.g. the client went away mid-upload.
	ErrContentRead = errors.New("content read failed")
	// ErrInternal is returned when an unexpected condition occurs
	ErrInternal = errors.New("internal error")
)
