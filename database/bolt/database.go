// Package bolt implements the metadata repo interface on a bbolt file.
// Each row is stored as a JSON document under its key in one bucket, so
// bucket iteration order is key order.
package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/sagarc03/blobkeep"
	"go.etcd.io/bbolt"
)

// openTimeout bounds how long Connect waits for the file lock held by
// another process.
const openTimeout = 5 * time.Second

type database struct {
	db     *bbolt.DB
	tables blobkeep.Tables
}

// Connect opens (or creates) the bolt file at path.
func Connect(ctx context.Context, path string, tables blobkeep.Tables) (*database, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("connect bolt: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("connect bolt: %w", err)
	}

	return &database{db: db, tables: tables}, nil
}

// Ping verifies the database file is still open.
func (d *database) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(func(*bbolt.Tx) error { return nil })
}

// Migrate creates the metadata bucket if it does not exist.
func (d *database) Migrate(ctx context.Context) error {
	if err := d.tables.Validate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	err := d.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(d.tables.MetaData)); err != nil {
			return fmt.Errorf("could not ensure bucket %q exists: %w", d.tables.MetaData, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Validate checks that the metadata bucket exists.
func (d *database) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return d.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(d.tables.MetaData)) == nil {
			return fmt.Errorf("validate schema %s: bucket does not exist", d.tables.MetaData)
		}
		return nil
	})
}

// GetRepo returns the MetaDataRepo for database operations.
func (d *database) GetRepo() blobkeep.MetaDataRepo {
	return &repo{db: d.db, bucket: []byte(d.tables.MetaData)}
}

// Close releases the file lock and closes the database.
func (d *database) Close() error {
	return d.db.Close()
}
