// Package database provides a unified interface for connecting to metadata backends.
//
// The metadata index records, for every blob key, its size, ETag and the
// created/modified timestamps assigned by the service. The package handles
// connection management, migrations, and schema validation for each backend.
//
// # Supported Backends
//
//   - SQLite: default backend using modernc.org/sqlite, suitable for single-node deployments
//   - PostgreSQL: backend using a pgx connection pool
//   - Bolt: embedded key/value backend using go.etcd.io/bbolt, one JSON document per key
//
// # Usage
//
//	cfg := database.Config{
//	    Type:        "sqlite",
//	    DSN:         "blobkeep.db",
//	    AutoMigrate: true,
//	    Tables:      blobkeep.Tables{MetaData: "blobkeep_metadata"},
//	}
//
//	db, err := database.Open(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	repo := db.GetRepo()
//
// # Subpackages
//
//   - database/sqlite: SQLite implementation
//   - database/postgres: PostgreSQL implementation using pgx
//   - database/bolt: bbolt implementation
package database
