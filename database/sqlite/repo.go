// Package sqlite implements the metadata repo interface using SQLite
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/blobkeep"
	"github.com/sagarc03/blobkeep/database/internal"
)

type repo struct {
	db        *sql.DB
	tableName string
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMetaData(row rowScanner) (blobkeep.MetaData, error) {
	var m blobkeep.MetaData
	var idStr, createdAt, updatedAt string

	if err := row.Scan(&idStr, &m.Key, &m.Etag, &m.FileSizeBytes, &createdAt, &updatedAt, &m.Version); err != nil {
		return blobkeep.MetaData{}, err
	}

	var err error
	m.ID, err = uuid.Parse(idStr)
	if err != nil {
		return blobkeep.MetaData{}, fmt.Errorf("parse uuid: %w", err)
	}

	m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return blobkeep.MetaData{}, fmt.Errorf("parse created_at: %w", err)
	}

	m.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return blobkeep.MetaData{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return m, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (r *repo) Get(ctx context.Context, key string) (blobkeep.MetaData, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT id, blob_key, etag, file_size_bytes, created_at, updated_at, version
		FROM %s
		WHERE blob_key = ?`, r.tableName)

	m, err := scanMetaData(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return blobkeep.MetaData{}, blobkeep.ErrNotFound
		}
		return blobkeep.MetaData{}, fmt.Errorf("get: %w", err)
	}

	return m, nil
}

func (r *repo) Upsert(ctx context.Context, entry blobkeep.ObjectEntry) (blobkeep.MetaData, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return blobkeep.MetaData{}, false, fmt.Errorf("upsert: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingID, existingCreatedAt string
	var existingVersion int64
	checkQuery := fmt.Sprintf(`SELECT id, created_at, version FROM %s WHERE blob_key = ?`, r.tableName) //nolint:gosec // table name is validated
	err = tx.QueryRowContext(ctx, checkQuery, entry.Key).Scan(&existingID, &existingCreatedAt, &existingVersion)
	isInsert := errors.Is(err, sql.ErrNoRows)
	if err != nil && !isInsert {
		return blobkeep.MetaData{}, false, fmt.Errorf("upsert: check existing: %w", err)
	}

	modified := formatTime(entry.ModifiedAt)
	m := blobkeep.MetaData{
		Key:           entry.Key,
		Etag:          entry.ETag,
		FileSizeBytes: entry.Size,
		Version:       existingVersion + 1,
	}

	if isInsert {
		newID := uuid.New()
		insertQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`INSERT INTO %s (id, blob_key, etag, file_size_bytes, created_at, updated_at, version)
			VALUES (?, ?, ?, ?, ?, ?, 1)`, r.tableName)

		_, err = tx.ExecContext(ctx, insertQuery,
			newID.String(), entry.Key, entry.ETag, entry.Size, modified, modified,
		)
		if err != nil {
			return blobkeep.MetaData{}, false, fmt.Errorf("upsert: insert: %w", err)
		}

		m.ID = newID
		existingCreatedAt = modified
	} else {
		updateQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`UPDATE %s
			SET etag = ?, file_size_bytes = ?, updated_at = ?, version = version + 1
			WHERE blob_key = ?`, r.tableName)

		_, err = tx.ExecContext(ctx, updateQuery, entry.ETag, entry.Size, modified, entry.Key)
		if err != nil {
			return blobkeep.MetaData{}, false, fmt.Errorf("upsert: update: %w", err)
		}

		m.ID, err = uuid.Parse(existingID)
		if err != nil {
			return blobkeep.MetaData{}, false, fmt.Errorf("upsert: parse uuid: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return blobkeep.MetaData{}, false, fmt.Errorf("upsert: commit: %w", err)
	}

	m.CreatedAt, err = time.Parse(time.RFC3339Nano, existingCreatedAt)
	if err != nil {
		return blobkeep.MetaData{}, false, fmt.Errorf("upsert: parse created_at: %w", err)
	}
	m.UpdatedAt, _ = time.Parse(time.RFC3339Nano, modified)

	return m, isInsert, nil
}

func (r *repo) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE blob_key = ?`, r.tableName) //nolint:gosec // G201: table name is validated

	result, err := r.db.ExecContext(ctx, query, key)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("delete: %w", blobkeep.ErrNotFound)
	}

	return nil
}

func (r *repo) List(ctx context.Context, q blobkeep.ListQuery) (blobkeep.ListResult, error) {
	cursor, err := internal.DecodeCursor(q.Cursor)
	if err != nil {
		return blobkeep.ListResult{}, fmt.Errorf("list: %w", err)
	}

	limit := internal.NormalizeLimit(q.Limit)

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT id, blob_key, etag, file_size_bytes, created_at, updated_at, version
		FROM %s
		WHERE blob_key > ?
		ORDER BY blob_key
		LIMIT ?`, r.tableName)

	rows, err := r.db.QueryContext(ctx, query, cursor.Key, limit+1)
	if err != nil {
		return blobkeep.ListResult{}, fmt.Errorf("list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]blobkeep.MetaData, 0, limit)
	for rows.Next() {
		m, err := scanMetaData(rows)
		if err != nil {
			return blobkeep.ListResult{}, fmt.Errorf("list: scan: %w", err)
		}
		items = append(items, m)
	}

	if err := rows.Err(); err != nil {
		return blobkeep.ListResult{}, fmt.Errorf("list: rows: %w", err)
	}

	var nextCursor string
	if len(items) > limit {
		// Cursor points to the last item of the current page
		nextCursor = internal.EncodeCursor(items[limit-1].Key)
		items = items[:limit]
	}

	return blobkeep.ListResult{Items: items, NextCursor: nextCursor}, nil
}
