// Package config provides configuration loading and validation for blobkeep.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (BLOBKEEP_ prefix), optionally seeded from .env
//  4. CLI flags
//
// # Usage
//
//	_ = config.LoadDotEnv(".env")
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with BLOBKEEP_ prefix:
//   - server.port → BLOBKEEP_SERVER_PORT
//   - database.type → BLOBKEEP_DATABASE_TYPE
//   - storage.path → BLOBKEEP_STORAGE_PATH
//
// Durations accept Go duration strings such as "30s" or "5m".
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: listen address, timeouts, upload limit, rate limit, compression
//   - Service: cleanup_timeout and stale_temp_age for the blob service
//   - Database: type (sqlite, postgres, bolt), DSN, auto_migrate and table names
//   - Storage: storage root path and reconcile_on_start
//   - CORS: cross-origin resource sharing settings
//   - Log: level and env (dev or prod)
//   - Debug: optional gops agent
//
// # Validation
//
// Configuration is validated using struct tags:
//   - Port must be 1-65535
//   - Database type must be sqlite, postgres, or bolt
//   - Log level must be debug, info, warn, or error
//   - Sizes, rates and durations must not be negative
package config
