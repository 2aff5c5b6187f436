package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/blobkeep"
)

// column is one column of the metadata table. reported is the data_type
// information_schema gives back for ddl.
type column struct {
	name     string
	ddl      string
	reported string
	extra    string
}

// metaColumns is the metadata table, in creation order. blob_key uses the
// C collation so ordering matches byte order, the same order the other
// backends list in.
var metaColumns = []column{
	{name: "id", ddl: "UUID", reported: "uuid", extra: "PRIMARY KEY DEFAULT gen_random_uuid()"},
	{name: "blob_key", ddl: `TEXT COLLATE "C"`, reported: "text", extra: "UNIQUE"},
	{name: "etag", ddl: "TEXT", reported: "text"},
	{name: "file_size_bytes", ddl: "BIGINT", reported: "bigint"},
	{name: "created_at", ddl: "TIMESTAMPTZ", reported: "timestamp with time zone"},
	{name: "updated_at", ddl: "TIMESTAMPTZ", reported: "timestamp with time zone"},
	{name: "version", ddl: "BIGINT", reported: "bigint", extra: "DEFAULT 1"},
}

// definition renders the column for CREATE TABLE and ADD COLUMN. Every
// column is NOT NULL.
func (c column) definition() string {
	def := c.name + " " + c.ddl + " NOT NULL"
	if c.extra != "" {
		def += " " + c.extra
	}
	return def
}

// Migrate creates the metadata table, or adds the columns an older
// blobkeep release did not have. It is safe to run repeatedly.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables blobkeep.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	table := pgx.Identifier{tables.MetaData}.Sanitize()

	defs := make([]string, len(metaColumns))
	for i, c := range metaColumns {
		defs[i] = c.definition()
	}

	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", table, strings.Join(defs, ",\n\t"))
		if _, err := tx.Exec(ctx, create); err != nil {
			return fmt.Errorf("create %s: %w", tables.MetaData, err)
		}

		for _, c := range metaColumns {
			if !strings.HasPrefix(c.extra, "DEFAULT ") {
				continue
			}
			alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s", table, c.definition())
			if _, err := tx.Exec(ctx, alter); err != nil {
				return fmt.Errorf("add %s.%s: %w", tables.MetaData, c.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// ValidateSchema checks the metadata table in the current schema against
// metaColumns and reports every problem it finds.
func ValidateSchema(ctx context.Context, pool *pgxpool.Pool, tables blobkeep.Tables) error {
	if !blobkeep.IsValidTableName(tables.MetaData) {
		return fmt.Errorf("validate schema: invalid table name: %s", tables.MetaData)
	}

	rows, err := pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable = 'NO'
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
	`, tables.MetaData)
	if err != nil {
		return fmt.Errorf("validate schema: %w", err)
	}

	type actual struct {
		dataType string
		notNull  bool
	}
	got := make(map[string]actual)

	var name, dataType string
	var notNull bool
	_, err = pgx.ForEachRow(rows, []any{&name, &dataType, &notNull}, func() error {
		got[name] = actual{dataType: dataType, notNull: notNull}
		return nil
	})
	if err != nil {
		return fmt.Errorf("validate schema: %w", err)
	}

	if len(got) == 0 {
		return fmt.Errorf("validate schema: table %s does not exist", tables.MetaData)
	}

	var errs []error
	for _, want := range metaColumns {
		col, ok := got[want.name]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("missing column %s", want.name))
		case col.dataType != want.reported:
			errs = append(errs, fmt.Errorf("column %s: expected %s, got %s", want.name, want.reported, col.dataType))
		case !col.notNull:
			errs = append(errs, fmt.Errorf("column %s: expected not null", want.name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validate schema %s: %w", tables.MetaData, errors.Join(errs...))
	}
	return nil
}

// DropTables removes the metadata table.
func DropTables(ctx context.Context, pool *pgxpool.Pool, tables blobkeep.Tables) error {
	if !blobkeep.IsValidTableName(tables.MetaData) {
		return fmt.Errorf("drop tables: invalid table name: %s", tables.MetaData)
	}
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+pgx.Identifier{tables.MetaData}.Sanitize()+" CASCADE"); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return nil
}
