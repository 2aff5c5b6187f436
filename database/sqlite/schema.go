package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sagarc03/blobkeep"
)

// column is one column of the metadata table as SQLite reports it back
// through pragma_table_info.
type column struct {
	name    string
	typ     string
	notNull bool
	extra   string
}

// metaColumns is the metadata table, in creation order. Columns listed
// after blob_key with a default can be added to an existing table.
var metaColumns = []column{
	{name: "id", typ: "TEXT", notNull: true, extra: "PRIMARY KEY"},
	{name: "blob_key", typ: "TEXT", notNull: true, extra: "UNIQUE"},
	{name: "etag", typ: "TEXT", notNull: true},
	{name: "file_size_bytes", typ: "INTEGER", notNull: true},
	{name: "created_at", typ: "TEXT", notNull: true},
	{name: "updated_at", typ: "TEXT", notNull: true},
	{name: "version", typ: "INTEGER", notNull: true, extra: "DEFAULT 1"},
}

func (c column) definition() string {
	def := c.name + " " + c.typ
	if c.notNull {
		def += " NOT NULL"
	}
	if c.extra != "" {
		def += " " + c.extra
	}
	return def
}

func (c column) addable() bool {
	return strings.HasPrefix(c.extra, "DEFAULT ")
}

// quoteIdentifier safely quotes a SQLite identifier
func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// readColumns returns the table's columns keyed by name, or nil when the
// table does not exist.
func readColumns(ctx context.Context, q queryer, table string) (map[string]column, error) {
	rows, err := q.QueryContext(ctx, `SELECT name, type, "notnull" FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cols map[string]column
	for rows.Next() {
		var c column
		var notNull int
		if err := rows.Scan(&c.name, &c.typ, &notNull); err != nil {
			return nil, fmt.Errorf("read columns: %w", err)
		}
		c.notNull = notNull != 0
		if cols == nil {
			cols = make(map[string]column)
		}
		cols[c.name] = c
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	return cols, nil
}

// Migrate creates the metadata table, or adds the columns an older
// blobkeep release did not have. It is safe to run repeatedly.
func Migrate(ctx context.Context, db *sql.DB, tables blobkeep.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	table := quoteIdentifier(tables.MetaData)

	existing, err := readColumns(ctx, tx, tables.MetaData)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if existing == nil {
		defs := make([]string, len(metaColumns))
		for i, c := range metaColumns {
			defs[i] = c.definition()
		}
		stmt := fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", table, strings.Join(defs, ",\n\t"))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: create %s: %w", tables.MetaData, err)
		}
	} else {
		for _, c := range metaColumns {
			if _, ok := existing[c.name]; ok || !c.addable() {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, c.definition())
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: add %s.%s: %w", tables.MetaData, c.name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit: %w", err)
	}
	return nil
}

// ValidateSchema checks the metadata table against metaColumns and reports
// every problem it finds.
func ValidateSchema(ctx context.Context, db *sql.DB, tables blobkeep.Tables) error {
	if !blobkeep.IsValidTableName(tables.MetaData) {
		return fmt.Errorf("validate schema: invalid table name: %s", tables.MetaData)
	}

	actual, err := readColumns(ctx, db, tables.MetaData)
	if err != nil {
		return fmt.Errorf("validate schema: %w", err)
	}
	if actual == nil {
		return fmt.Errorf("validate schema: table %s does not exist", tables.MetaData)
	}

	var errs []error
	for _, want := range metaColumns {
		got, ok := actual[want.name]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("missing column %s", want.name))
		case !strings.EqualFold(got.typ, want.typ):
			errs = append(errs, fmt.Errorf("column %s: expected %s, got %s", want.name, want.typ, got.typ))
		case got.notNull != want.notNull:
			errs = append(errs, fmt.Errorf("column %s: expected not null=%v", want.name, want.notNull))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validate schema %s: %w", tables.MetaData, errors.Join(errs...))
	}
	return nil
}

// DropTables removes the metadata table.
func DropTables(ctx context.Context, db *sql.DB, tables blobkeep.Tables) error {
	if !blobkeep.IsValidTableName(tables.MetaData) {
		return fmt.Errorf("drop tables: invalid table name: %s", tables.MetaData)
	}
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdentifier(tables.MetaData)); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return nil
}
