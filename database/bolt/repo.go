package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sagarc03/blobkeep"
	"github.com/sagarc03/blobkeep/database/internal"
	"go.etcd.io/bbolt"
)

type repo struct {
	db     *bbolt.DB
	bucket []byte
}

func (r *repo) metaBucket(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	b := tx.Bucket(r.bucket)
	if b == nil {
		return nil, fmt.Errorf("bucket %q does not exist", r.bucket)
	}
	return b, nil
}

func decode(value []byte) (blobkeep.MetaData, error) {
	var m blobkeep.MetaData
	if err := json.Unmarshal(value, &m); err != nil {
		return blobkeep.MetaData{}, fmt.Errorf("decode %.40q: %w", value, err)
	}
	// records written before versioning
	if m.Version == 0 {
		m.Version = 1
	}
	return m, nil
}

func (r *repo) Get(ctx context.Context, key string) (m blobkeep.MetaData, err error) {
	if err := ctx.Err(); err != nil {
		return blobkeep.MetaData{}, err
	}

	err = r.db.View(func(tx *bbolt.Tx) error {
		b, err := r.metaBucket(tx)
		if err != nil {
			return err
		}
		value := b.Get([]byte(key))
		if value == nil {
			return blobkeep.ErrNotFound
		}
		m, err = decode(value)
		return err
	})
	if err != nil {
		if errors.Is(err, blobkeep.ErrNotFound) {
			return blobkeep.MetaData{}, err
		}
		return blobkeep.MetaData{}, fmt.Errorf("get: %w", err)
	}
	return m, nil
}

func (r *repo) Upsert(ctx context.Context, entry blobkeep.ObjectEntry) (m blobkeep.MetaData, inserted bool, err error) {
	if err := ctx.Err(); err != nil {
		return blobkeep.MetaData{}, false, err
	}

	modified := entry.ModifiedAt.UTC()

	err = r.db.Update(func(tx *bbolt.Tx) error {
		b, err := r.metaBucket(tx)
		if err != nil {
			return err
		}

		if existing := b.Get([]byte(entry.Key)); existing != nil {
			m, err = decode(existing)
			if err != nil {
				return err
			}
		} else {
			inserted = true
			m = blobkeep.MetaData{ID: uuid.New(), Key: entry.Key, CreatedAt: modified}
		}

		m.Etag = entry.ETag
		m.FileSizeBytes = entry.Size
		m.UpdatedAt = modified
		m.Version++

		value, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		if err := b.Put([]byte(entry.Key), value); err != nil {
			return fmt.Errorf("could not put %.40q: %w", entry.Key, err)
		}
		return nil
	})
	if err != nil {
		return blobkeep.MetaData{}, false, fmt.Errorf("upsert: %w", err)
	}
	return m, inserted, nil
}

func (r *repo) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := r.db.Update(func(tx *bbolt.Tx) error {
		b, err := r.metaBucket(tx)
		if err != nil {
			return err
		}
		if b.Get([]byte(key)) == nil {
			return blobkeep.ErrNotFound
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func (r *repo) List(ctx context.Context, q blobkeep.ListQuery) (blobkeep.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return blobkeep.ListResult{}, err
	}

	cursor, err := internal.DecodeCursor(q.Cursor)
	if err != nil {
		return blobkeep.ListResult{}, fmt.Errorf("list: %w", err)
	}

	limit := internal.NormalizeLimit(q.Limit)
	items := make([]blobkeep.MetaData, 0, limit)

	err = r.db.View(func(tx *bbolt.Tx) error {
		b, err := r.metaBucket(tx)
		if err != nil {
			return err
		}

		c := b.Cursor()
		k, v := c.First()
		if cursor.Key != "" {
			k, v = c.Seek([]byte(cursor.Key))
			if k != nil && bytes.Equal(k, []byte(cursor.Key)) {
				k, v = c.Next()
			}
		}

		for ; k != nil && len(items) <= limit; k, v = c.Next() {
			m, err := decode(v)
			if err != nil {
				return err
			}
			items = append(items, m)
		}
		return nil
	})
	if err != nil {
		return blobkeep.ListResult{}, fmt.Errorf("list: %w", err)
	}

	var nextCursor string
	if len(items) > limit {
		nextCursor = internal.EncodeCursor(items[limit-1].Key)
		items = items[:limit]
	}

	return blobkeep.ListResult{Items: items, NextCursor: nextCursor}, nil
}
