package blobkeep

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// BlobInfo describes a stored blob. Timestamps are assigned by the
// BlobService and never taken from the client.
type BlobInfo struct {
	Key        string    `json:"key"`
	Size       int64     `json:"size"`
	ETag       string    `json:"etag,omitempty"`
	Version    int64     `json:"version,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// MetaData is a row of the metadata index.
type MetaData struct {
	ID            uuid.UUID `json:"id"`
	Key           string    `json:"key"`
	Etag          string    `json:"etag"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	// Version counts the puts under this key: 1 on insert, +1 per
	// replacement. It restarts at 1 after a delete.
	Version int64 `json:"version"`
}

// Info converts an index row to the public blob description.
func (m MetaData) Info() BlobInfo {
	return BlobInfo{
		Key:        m.Key,
		Size:       m.FileSizeBytes,
		ETag:       m.Etag,
		Version:    m.Version,
		CreatedAt:  m.CreatedAt,
		ModifiedAt: m.UpdatedAt,
	}
}

// ObjectEntry is what the BlobService hands to MetaDataRepo.Upsert.
// ModifiedAt becomes updated_at, and created_at too when the key is new.
type ObjectEntry struct {
	Key        string
	Size       int64
	ETag       string
	ModifiedAt time.Time
}

type ListQuery struct {
	Limit  int
	Cursor string
}

type ListResult struct {
	Items      []MetaData `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

type SaveResult struct {
	BytesWritten int64
	Etag         string
}

// BlobFile is an open blob. The handle keeps the content it was opened
// with even if the key is replaced or deleted afterwards.
type BlobFile interface {
	io.ReadSeekCloser
	Stat() (fs.FileInfo, error)
}

// ReconcileResult reports what BlobService.Reconcile changed.
type ReconcileResult struct {
	Indexed     int `json:"indexed"`
	Pruned      int `json:"pruned"`
	TempRemoved int `json:"temp_removed"`
}

// Tables holds configurable table names for metadata storage.
// This allows multi-tenant deployments to use different table names.
type Tables struct {
	MetaData string `mapstructure:"meta_data" validate:"required"`
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set and valid.
func (t Tables) Validate() error {
	if t.MetaData == "" {
		return errors.New("validate tables: metadata table name cannot be empty")
	}

	if !IsValidTableName(t.MetaData) {
		return fmt.Errorf("validate tables: invalid metadata table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", t.MetaData)
	}

	return nil
}
