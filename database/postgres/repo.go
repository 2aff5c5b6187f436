// Package postgres implements the metadata repo interface using PostgreSQL
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/blobkeep"
	"github.com/sagarc03/blobkeep/database/internal"
)

type repo struct {
	pool      *pgxpool.Pool
	tableName string
}

func newRepo(pool *pgxpool.Pool, tableName string) *repo {
	return &repo{pool: pool, tableName: pgx.Identifier{tableName}.Sanitize()}
}

func scanMetaData(row pgx.Row) (blobkeep.MetaData, error) {
	var m blobkeep.MetaData
	if err := row.Scan(&m.ID, &m.Key, &m.Etag, &m.FileSizeBytes, &m.CreatedAt, &m.UpdatedAt, &m.Version); err != nil {
		return blobkeep.MetaData{}, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m, nil
}

func (r *repo) Get(ctx context.Context, key string) (blobkeep.MetaData, error) {
	query := fmt.Sprintf(`
		SELECT id, blob_key, etag, file_size_bytes, created_at, updated_at, version
		FROM %s
		WHERE blob_key = $1
	`, r.tableName)

	m, err := scanMetaData(r.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return blobkeep.MetaData{}, blobkeep.ErrNotFound
		}
		return blobkeep.MetaData{}, fmt.Errorf("get: %w", err)
	}

	return m, nil
}

func (r *repo) Upsert(ctx context.Context, entry blobkeep.ObjectEntry) (blobkeep.MetaData, bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %[1]s AS m (blob_key, etag, file_size_bytes, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $4, 1)
		ON CONFLICT (blob_key) DO UPDATE
		SET etag = EXCLUDED.etag,
			file_size_bytes = EXCLUDED.file_size_bytes,
			updated_at = EXCLUDED.updated_at,
			version = m.version + 1
		RETURNING id, blob_key, etag, file_size_bytes, created_at, updated_at, version,
			(xmax = 0) AS inserted
	`, r.tableName)

	var m blobkeep.MetaData
	var inserted bool

	err := r.pool.QueryRow(ctx, query, entry.Key, entry.ETag, entry.Size, entry.ModifiedAt.UTC()).Scan(
		&m.ID, &m.Key, &m.Etag, &m.FileSizeBytes, &m.CreatedAt, &m.UpdatedAt, &m.Version, &inserted,
	)
	if err != nil {
		return blobkeep.MetaData{}, false, fmt.Errorf("upsert: %w", err)
	}

	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()

	return m, inserted, nil
}

func (r *repo) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE blob_key = $1`, r.tableName)

	result, err := r.pool.Exec(ctx, query, key)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	if result.RowsAffected() == 0 {
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

	query := fmt.Sprintf(`
		SELECT id, blob_key, etag, file_size_bytes, created_at, updated_at, version
		FROM %s
		WHERE blob_key > $1
		ORDER BY blob_key
		LIMIT $2
	`, r.tableName)

	rows, err := r.pool.Query(ctx, query, cursor.Key, limit+1)
	if err != nil {
		return blobkeep.ListResult{}, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

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
