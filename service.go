package blobkeep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"time"
)

// MetaDataRepo defines the interface for the metadata index kept beside the
// blob files. Implementations must handle concurrent access safely.
//
// All methods accept a context for cancellation and timeout control.
type MetaDataRepo interface {
	// Get retrieves metadata for a key.
	//
	// Returns ErrNotFound if the key has no row.
	Get(ctx context.Context, key string) (MetaData, error)

	// Upsert creates or updates the row for entry.Key.
	//
	// On insert both created_at and updated_at are set to entry.ModifiedAt.
	// On update only updated_at changes; created_at is preserved.
	//
	// Returns:
	//   - MetaData: The stored row
	//   - bool: true if a new row was created, false if an existing row was updated
	//   - error: Any database error
	Upsert(ctx context.Context, entry ObjectEntry) (MetaData, bool, error)

	// Delete removes the row for a key.
	//
	// Returns ErrNotFound if the key has no row.
	Delete(ctx context.Context, key string) error

	// List returns rows ordered by key, paginated with an opaque cursor.
	List(ctx context.Context, q ListQuery) (ListResult, error)
}

// FileStorage defines the interface for blob file operations under the
// storage root. Keys passed in are already validated.
type FileStorage interface {
	// Open opens the blob for reading. Returns ErrNotFound if it does not exist.
	// The caller is responsible for closing the returned file.
	Open(ctx context.Context, key string) (BlobFile, error)

	// Stat returns file information without opening the blob.
	// Returns ErrNotFound if it does not exist.
	Stat(ctx context.Context, key string) (fs.FileInfo, error)

	// Write stores content under key, replacing any existing blob.
	//
	// Implementations must write atomically: content goes to a temporary
	// file in the same directory which is then renamed over the final name,
	// so a concurrent reader sees either the old or the new content in full.
	// Errors reading content must wrap ErrContentRead.
	Write(ctx context.Context, key string, content io.Reader) (SaveResult, error)

	// Delete removes the blob. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, key string) error

	// Keys yields every blob key in directory enumeration order. The
	// sequence is lazy and can be ranged over again to re-read the directory.
	Keys(ctx context.Context) iter.Seq2[string, error]

	// Describe hashes the blob and returns its size, ETag and modification time.
	Describe(ctx context.Context, key string) (ObjectEntry, error)

	// RemoveStale deletes leftover temporary files older than age.
	RemoveStale(ctx context.Context, age time.Duration) (int, error)
}

// BlobService is the storage manager: it owns the storage root through a
// FileStorage, keeps the metadata index current and serializes mutations of
// the same key.
type BlobService struct {
	repo           MetaDataRepo
	storage        FileStorage
	locks          *keyLock
	cleanupTimeout time.Duration
	staleTempAge   time.Duration
	now            func() time.Time
}

// ServiceConfig holds configuration options for BlobService.
type ServiceConfig struct {
	CleanupTimeout time.Duration // Timeout for cleanup after a failed put (default: 30s)
	StaleTempAge   time.Duration // Age after which Reconcile removes temp files (default: 1h)
}

func NewBlobService(repo MetaDataRepo, storage FileStorage, cfg ServiceConfig) (*BlobService, error) {
	if repo == nil {
		return nil, errors.New("new blob service: metadata repo is required")
	}
	if storage == nil {
		return nil, errors.New("new blob service: file storage is required")
	}

	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}
	staleTempAge := cfg.StaleTempAge
	if staleTempAge <= 0 {
		staleTempAge = time.Hour
	}

	return &BlobService{
		repo:           repo,
		storage:        storage,
		locks:          newKeyLock(),
		cleanupTimeout: cleanupTimeout,
		staleTempAge:   staleTempAge,
		now:            func() time.Time { return time.Now().UTC() },
	}, nil
}

// Put stores content under key, creating or replacing the blob.
//
// The key is validated before anything touches the filesystem. Writers of
// the same key are serialized; the last one to finish wins. Once content
// has been read to the end the commit (rename and metadata update) runs to
// completion even if ctx is cancelled.
//
// Returns the stored blob description and true if the key did not exist.
//
// Error types returned:
//   - ErrInvalidKey: key fails the key grammar
//   - ErrContentRead: content could not be read to the end; nothing changed
//   - ErrStorageUnavailable: filesystem or metadata index failure
func (s *BlobService) Put(ctx context.Context, key string, content io.Reader) (BlobInfo, bool, error) {
	if err := ctx.Err(); err != nil {
		return BlobInfo{}, false, fmt.Errorf("put blob: %w", err)
	}

	if err := ValidateKey(key); err != nil {
		return BlobInfo{}, false, fmt.Errorf("put blob: %w", err)
	}

	unlock := s.locks.Lock(key)
	defer unlock()

	existed := true
	if _, err := s.storage.Stat(ctx, key); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return BlobInfo{}, false, fmt.Errorf("put blob %s: %w: %w", key, ErrStorageUnavailable, err)
		}
		existed = false
	}

	saved, err := s.storage.Write(ctx, key, content)
	if err != nil {
		if errors.Is(err, ErrContentRead) {
			return BlobInfo{}, false, fmt.Errorf("put blob %s: %w", key, err)
		}
		return BlobInfo{}, false, s.storageErr("put blob", key, err)
	}

	commitCtx := context.WithoutCancel(ctx)

	entry := ObjectEntry{
		Key:        key,
		Size:       saved.BytesWritten,
		ETag:       saved.Etag,
		ModifiedAt: s.now(),
	}

	m, _, upsertErr := s.repo.Upsert(commitCtx, entry)
	if upsertErr != nil {
		if existed {
			slog.Warn("blob replaced but metadata update failed", "key", key, "err", upsertErr)
			return BlobInfo{}, false, fmt.Errorf("put blob %s: metadata upsert failed: %w: %w", key, ErrStorageUnavailable, upsertErr)
		}

		cleanupCtx, cancel := context.WithTimeout(commitCtx, s.cleanupTimeout)
		defer cancel()

		if delErr := s.storage.Delete(cleanupCtx, key); delErr != nil {
			return BlobInfo{}, false, fmt.Errorf("put blob %s: metadata upsert failed (%w) and cleanup failed (%w): %w", key, upsertErr, delErr, ErrStorageUnavailable)
		}
		return BlobInfo{}, false, fmt.Errorf("put blob %s: metadata upsert failed: %w: %w", key, ErrStorageUnavailable, upsertErr)
	}

	return m.Info(), !existed, nil
}

// Get opens the blob stored under key. The returned description and content
// belong to the same version of the blob. The caller must close the content.
func (s *BlobService) Get(ctx context.Context, key string) (BlobInfo, io.ReadSeekCloser, error) {
	if err := ctx.Err(); err != nil {
		return BlobInfo{}, nil, fmt.Errorf("get blob: %w", err)
	}

	if err := ValidateKey(key); err != nil {
		return BlobInfo{}, nil, fmt.Errorf("get blob: %w", err)
	}

	unlock := s.locks.RLock(key)
	defer unlock()

	f, err := s.storage.Open(ctx, key)
	if err != nil {
		return BlobInfo{}, nil, s.storageErr("get blob", key, err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return BlobInfo{}, nil, fmt.Errorf("get blob %s: %w: %w", key, ErrStorageUnavailable, err)
	}

	info, err := s.describe(ctx, key, fi)
	if err != nil {
		_ = f.Close()
		return BlobInfo{}, nil, fmt.Errorf("get blob %s: %w", key, err)
	}

	return info, f, nil
}

// Stat returns the description of the blob stored under key without opening it.
func (s *BlobService) Stat(ctx context.Context, key string) (BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return BlobInfo{}, fmt.Errorf("stat blob: %w", err)
	}

	if err := ValidateKey(key); err != nil {
		return BlobInfo{}, fmt.Errorf("stat blob: %w", err)
	}

	unlock := s.locks.RLock(key)
	defer unlock()

	fi, err := s.storage.Stat(ctx, key)
	if err != nil {
		return BlobInfo{}, s.storageErr("stat blob", key, err)
	}

	info, err := s.describe(ctx, key, fi)
	if err != nil {
		return BlobInfo{}, fmt.Errorf("stat blob %s: %w", key, err)
	}

	return info, nil
}

// describe merges what the filesystem says about a blob with its index row.
// Size always comes from the file; a file without a row falls back to its
// modification time for both timestamps and has no version.
func (s *BlobService) describe(ctx context.Context, key string, fi fs.FileInfo) (BlobInfo, error) {
	info := BlobInfo{
		Key:        key,
		Size:       fi.Size(),
		CreatedAt:  fi.ModTime().UTC(),
		ModifiedAt: fi.ModTime().UTC(),
	}

	m, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return info, nil
		}
		return BlobInfo{}, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	info.ETag = m.Etag
	info.CreatedAt = m.CreatedAt
	info.ModifiedAt = m.UpdatedAt
	info.Version = m.Version
	return info, nil
}

// Delete removes the blob stored under key.
func (s *BlobService) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}

	if err := ValidateKey(key); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}

	unlock := s.locks.Lock(key)
	defer unlock()

	if err := s.storage.Delete(ctx, key); err != nil {
		return s.storageErr("delete blob", key, err)
	}

	err := s.repo.Delete(context.WithoutCancel(ctx), key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete blob %s: metadata delete failed: %w: %w", key, ErrStorageUnavailable, err)
	}

	return nil
}

// List yields the keys of all current blobs in directory enumeration order.
// Every range over the returned sequence reads the directory afresh.
func (s *BlobService) List(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := ctx.Err(); err != nil {
			yield("", fmt.Errorf("list blobs: %w", err))
			return
		}

		for key, err := range s.storage.Keys(ctx) {
			if err != nil {
				yield("", fmt.Errorf("list blobs: %w: %w", ErrStorageUnavailable, err))
				return
			}
			if !yield(key, nil) {
				return
			}
		}
	}
}

// Reconcile brings the metadata index in line with the storage root.
//
// It performs the following steps:
//  1. Removes temporary files left behind by interrupted writes
//  2. Indexes blob files that have no metadata row (e.g. copied in by hand)
//  3. Removes metadata rows whose blob file is gone
//
// Each key is handled under its lock, so Reconcile is safe to run while
// the server is serving traffic. It stops at the first error.
func (s *BlobService) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("reconcile: %w", err)
	}

	removed, err := s.storage.RemoveStale(ctx, s.staleTempAge)
	if err != nil {
		return res, fmt.Errorf("reconcile: remove stale: %w", err)
	}
	res.TempRemoved = removed

	for key, err := range s.storage.Keys(ctx) {
		if err != nil {
			return res, fmt.Errorf("reconcile: %w", err)
		}

		indexed, err := s.indexKey(ctx, key)
		if err != nil {
			return res, fmt.Errorf("reconcile '%s': %w", key, err)
		}
		if indexed {
			res.Indexed++
		}
	}

	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("reconcile: %w", err)
		}

		page, err := s.repo.List(ctx, ListQuery{Limit: 500, Cursor: cursor})
		if err != nil {
			return res, fmt.Errorf("reconcile: %w", err)
		}

		for _, m := range page.Items {
			pruned, err := s.pruneKey(ctx, m.Key)
			if err != nil {
				return res, fmt.Errorf("reconcile '%s': %w", m.Key, err)
			}
			if pruned {
				res.Pruned++
			}
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	return res, nil
}

func (s *BlobService) indexKey(ctx context.Context, key string) (bool, error) {
	unlock := s.locks.Lock(key)
	defer unlock()

	_, err := s.repo.Get(ctx, key)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	entry, err := s.storage.Describe(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// deleted since it was listed
			return false, nil
		}
		return false, err
	}

	if _, _, err := s.repo.Upsert(ctx, entry); err != nil {
		return false, err
	}
	return true, nil
}

func (s *BlobService) pruneKey(ctx context.Context, key string) (bool, error) {
	unlock := s.locks.Lock(key)
	defer unlock()

	_, err := s.storage.Stat(ctx, key)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	if err := s.repo.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}
	return true, nil
}

func (s *BlobService) storageErr(op, key string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s %s: %w", op, key, ErrNotFound)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w", op, key, err)
	}
	return fmt.Errorf("%s %s: %w: %w", op, key, ErrStorageUnavailable, err)
}
