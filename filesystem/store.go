// Package filesystem provides the blob file backend for blobkeep.
// It stores one file per key directly under an *os.Root, writes atomically
// through a temp file and rename, and computes SHA256-based etags while
// writing.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/blobkeep"
)

// tmpPrefix starts every temp file name. Keys must start with a letter or
// digit, so temp files never collide with blobs.
const tmpPrefix = ".t"

// readDirBatch is how many directory entries Keys reads at a time.
const readDirBatch = 128

// Store provides blob file operations.
type Store struct {
	root *os.Root
}

// NewFileStorage creates a new Store over the given root directory.
// The root provides sandboxed file operations preventing path traversal.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

// Open opens a blob for reading. Returns blobkeep.ErrNotFound if it does not exist.
func (s *Store) Open(ctx context.Context, key string) (blobkeep.BlobFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.root.Open(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, blobkeep.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if !fi.Mode().IsRegular() {
		_ = f.Close()
		return nil, blobkeep.ErrNotFound
	}

	return f, nil
}

// Stat returns file information for a blob. Returns blobkeep.ErrNotFound if it does not exist.
func (s *Store) Stat(ctx context.Context, key string) (fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fi, err := s.root.Stat(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, blobkeep.ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	if !fi.Mode().IsRegular() {
		return nil, blobkeep.ErrNotFound
	}

	return fi, nil
}

// ctxReader stops a copy once ctx is done and marks every read failure as
// blobkeep.ErrContentRead so callers can tell it apart from write failures.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", blobkeep.ErrContentRead, err)
	}
	n, err = r.r.Read(p)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("%w: %w", blobkeep.ErrContentRead, err)
	}
	return n, err
}

// Write atomically writes content to key using a temp file and rename in the
// same directory. It returns a SaveResult with the number of bytes written and
// the SHA256-based etag. Cancelling ctx aborts the copy and leaves any
// previous blob untouched; once the copy is done the rename always happens.
func (s *Store) Write(ctx context.Context, key string, content io.Reader) (blobkeep.SaveResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return blobkeep.SaveResult{}, ctxErr
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.OpenFile(tmpFile, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if createErr != nil {
		return blobkeep.SaveResult{}, fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	closed := false
	defer func() {
		if !closed {
			if closeErr := t.Close(); closeErr != nil {
				slog.Warn("failed to close tmp file", "err", closeErr)
			}
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	h := sha256.New()
	w := io.MultiWriter(h, t)

	fileSizeBytes, err := io.Copy(w, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return blobkeep.SaveResult{}, fmt.Errorf("could not copy file contents: %w", err)
	}

	err = t.Sync()
	if err != nil {
		return blobkeep.SaveResult{}, fmt.Errorf("could not sync written file: %w", err)
	}

	closed = true
	if err := t.Close(); err != nil {
		return blobkeep.SaveResult{}, fmt.Errorf("could not close written file: %w", err)
	}

	if renameErr := s.root.Rename(tmpFile, key); renameErr != nil {
		return blobkeep.SaveResult{}, fmt.Errorf("failed to rename file: %w", renameErr)
	}
	success = true

	s.syncDir()

	etag := hex.EncodeToString(h.Sum(nil))

	return blobkeep.SaveResult{BytesWritten: fileSizeBytes, Etag: etag}, nil
}

// syncDir flushes the root directory so a completed rename or remove
// survives a crash. Failure only costs durability of the last operation.
func (s *Store) syncDir() {
	d, err := s.root.Open(".")
	if err != nil {
		slog.Warn("failed to open storage root for sync", "err", err)
		return
	}
	defer func() { _ = d.Close() }()

	if err := d.Sync(); err != nil {
		slog.Warn("failed to sync storage root", "err", err)
	}
}

// Delete removes a blob. Returns blobkeep.ErrNotFound if it does not exist.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.root.Remove(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return blobkeep.ErrNotFound
		}
		return fmt.Errorf("could not delete file: %w", err)
	}

	s.syncDir()
	return nil
}

// Keys yields the name of every regular file in the root that is a valid
// key. Temp files and foreign entries are skipped. The directory is read in
// batches, so large roots are never loaded at once.
func (s *Store) Keys(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		d, err := s.root.Open(".")
		if err != nil {
			yield("", fmt.Errorf("failed to open storage root: %w", err))
			return
		}
		defer func() { _ = d.Close() }()

		for {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}

			entries, err := d.ReadDir(readDirBatch)
			for _, entry := range entries {
				if !entry.Type().IsRegular() || !blobkeep.IsValidKey(entry.Name()) {
					continue
				}
				if !yield(entry.Name(), nil) {
					return
				}
			}

			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield("", fmt.Errorf("failed to read storage root: %w", err))
				}
				return
			}
		}
	}
}

// Describe reads the blob and returns its size, SHA256-based etag and
// modification time. Used to index files that have no metadata yet.
func (s *Store) Describe(ctx context.Context, key string) (blobkeep.ObjectEntry, error) {
	f, err := s.Open(ctx, key)
	if err != nil {
		return blobkeep.ObjectEntry{}, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close file", "key", key, "err", closeErr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return blobkeep.ObjectEntry{}, fmt.Errorf("describe: %w", err)
	}

	h := sha256.New()
	size, err := io.Copy(h, &ctxReader{ctx: ctx, r: f})
	if err != nil {
		return blobkeep.ObjectEntry{}, fmt.Errorf("describe: %w", err)
	}

	return blobkeep.ObjectEntry{
		Key:        key,
		Size:       size,
		ETag:       hex.EncodeToString(h.Sum(nil)),
		ModifiedAt: info.ModTime().UTC(),
	}, nil
}

// RemoveStale removes temp files last modified more than age ago. Younger
// temp files may belong to writes still in flight and are kept.
func (s *Store) RemoveStale(ctx context.Context, age time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	entries, err := fs.ReadDir(s.root.FS(), ".")
	if err != nil {
		return 0, fmt.Errorf("remove stale: %w", err)
	}

	cutoff := time.Now().Add(-age)
	removed := 0

	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), tmpPrefix) || !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return removed, fmt.Errorf("remove stale: %w", err)
		}

		if info.ModTime().After(cutoff) {
			continue
		}

		if err := s.root.Remove(entry.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove stale: %w", err)
		}
		removed++
	}

	return removed, nil
}

func tmpFileName() string {
	return tmpPrefix + uuid.New().String()
}
