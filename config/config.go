package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/blobkeep"
	"github.com/sagarc03/blobkeep/database"
	blobhttp "github.com/sagarc03/blobkeep/http"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "BLOBKEEP"

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for blobkeep.
type Config struct {
	Server   ServerConfig        `mapstructure:"server"`
	Service  ServiceConfig       `mapstructure:"service"`
	Database database.Config     `mapstructure:"database"`
	Storage  StorageConfig       `mapstructure:"storage"`
	CORS     blobhttp.CORSConfig `mapstructure:"cors"`
	Log      LogConfig           `mapstructure:"log"`
	Debug    DebugConfig         `mapstructure:"debug"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"min=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
	MaxUploadSize   int64         `mapstructure:"max_upload_size" validate:"min=0"`
	RateLimit       float64       `mapstructure:"rate_limit" validate:"min=0"`
	RateBurst       int           `mapstructure:"rate_burst" validate:"min=0"`
	Compress        bool          `mapstructure:"compress"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	CleanupTimeout time.Duration `mapstructure:"cleanup_timeout" validate:"min=0"`
	StaleTempAge   time.Duration `mapstructure:"stale_temp_age" validate:"min=0"`
}

// BlobService converts the config into blobkeep.ServiceConfig.
func (s ServiceConfig) BlobService() blobkeep.ServiceConfig {
	return blobkeep.ServiceConfig{
		CleanupTimeout: s.CleanupTimeout,
		StaleTempAge:   s.StaleTempAge,
	}
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	Path             string `mapstructure:"path" validate:"required"`
	ReconcileOnStart bool   `mapstructure:"reconcile_on_start"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Env   string `mapstructure:"env" validate:"required,oneof=dev prod"`
}

// DebugConfig holds diagnostics configuration.
type DebugConfig struct {
	Gops     bool   `mapstructure:"gops"`
	GopsAddr string `mapstructure:"gops_addr"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":         "database.type",
	"db-dsn":          "database.dsn",
	"storage-path":    "storage.path",
	"host":            "server.host",
	"port":            "server.port",
	"max-upload-size": "server.max_upload_size",
	"reconcile":       "storage.reconcile_on_start",
	"log-level":       "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_upload_size", 0) // 0 means no limit
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_burst", 0)
	v.SetDefault("server.compress", false)

	v.SetDefault("service.cleanup_timeout", 30*time.Second)
	v.SetDefault("service.stale_temp_age", time.Hour)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "blobkeep.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.tables.meta_data", "blobkeep_metadata")

	v.SetDefault("storage.path", "./storage")
	v.SetDefault("storage.reconcile_on_start", false)

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "HEAD", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type"})
	v.SetDefault("cors.exposed_headers", []string{"ETag", "Content-Length", "Last-Modified", "Location", "X-Blob-Version"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.env", "dev")

	v.SetDefault("debug.gops", false)
	v.SetDefault("debug.gops_addr", "")
}

// LoadDotEnv loads path into the process environment if it exists.
// Variables already set in the environment win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
