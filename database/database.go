package database

import (
	"context"
	"fmt"

	"github.com/sagarc03/blobkeep"
	"github.com/sagarc03/blobkeep/database/bolt"
	"github.com/sagarc03/blobkeep/database/postgres"
	"github.com/sagarc03/blobkeep/database/sqlite"
)

// Config holds the configuration for connecting to a metadata backend.
type Config struct {
	// Type specifies the database type: "sqlite", "postgres" or "bolt"
	Type string `mapstructure:"type" validate:"required,oneof=sqlite postgres bolt"`
	// DSN is the data source name (connection string, or file path for bolt)
	DSN string `mapstructure:"dsn" validate:"required"`
	// AutoMigrate creates missing tables when the database is opened
	AutoMigrate bool `mapstructure:"auto_migrate"`
	// Tables holds the table (bucket for bolt) names
	Tables blobkeep.Tables `mapstructure:"tables"`
}

// Database is a connected metadata backend.
type Database interface {
	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
	// Migrate creates the tables blobkeep needs. It is idempotent.
	Migrate(ctx context.Context) error
	// Validate checks that the tables exist with the expected schema.
	Validate(ctx context.Context) error
	// GetRepo returns the metadata repo backed by this database.
	GetRepo() blobkeep.MetaDataRepo
	// Close releases the connection.
	Close() error
}

// Connect establishes a connection to the configured database backend.
// It does not touch the schema; call Migrate and Validate as needed, or use Open.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	if err := cfg.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	switch cfg.Type {
	case "sqlite":
		return connectSQLite(ctx, cfg)
	case "postgres":
		return connectPostgres(ctx, cfg)
	case "bolt":
		return connectBolt(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

func connectSQLite(ctx context.Context, cfg Config) (Database, error) {
	db, err := sqlite.Connect(ctx, cfg.DSN, cfg.Tables)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func connectPostgres(ctx context.Context, cfg Config) (Database, error) {
	db, err := postgres.Connect(ctx, cfg.DSN, cfg.Tables)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func connectBolt(ctx context.Context, cfg Config) (Database, error) {
	db, err := bolt.Connect(ctx, cfg.DSN, cfg.Tables)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Open connects, pings, runs migrations when cfg.AutoMigrate is set and
// validates the schema. The caller must Close the returned Database.
func Open(ctx context.Context, cfg Config) (Database, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Type, err)
	}

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate %s: %w", cfg.Type, err)
		}
	}

	if err := db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate %s schema: %w", cfg.Type, err)
	}

	return db, nil
}
