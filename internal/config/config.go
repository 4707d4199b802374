// Package config handles loading and validation of oacload.yaml project configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/oacload/internal/fetcher"
	"github.com/dwsmith1983/oacload/internal/provider/postgres"
	"github.com/dwsmith1983/oacload/internal/schedule"
	"github.com/dwsmith1983/oacload/pkg/types"
)

// FileName is the project configuration file looked up in a directory.
const FileName = "oacload.yaml"

// Defaults applied to unset fields.
const (
	DefaultAsset          = "TW"
	DefaultWindowDays     = 3
	DefaultArtifactDir    = "./data"
	DefaultLogLevel       = "info"
	DefaultRequestTimeout = 60 * time.Second
	DefaultRunTimeout     = 15 * time.Minute
)

// Environment variables that override file values.
const (
	EnvDatabaseDSN    = "OACLOAD_DATABASE_DSN"
	EnvDatabaseTable  = "OACLOAD_DATABASE_TABLE"
	EnvDBSecretARN    = "OACLOAD_DB_SECRET_ARN"
	EnvEndpoint       = "OACLOAD_ENDPOINT"
	EnvAsset          = "OACLOAD_ASSET"
	EnvArtifactDir    = "OACLOAD_ARTIFACT_DIR"
	EnvWindowDays     = "OACLOAD_WINDOW_DAYS"
	EnvLogLevel       = "OACLOAD_LOG_LEVEL"
	EnvOTLPEndpoint   = "OACLOAD_OTLP_ENDPOINT"
	EnvAutoMigrate    = "OACLOAD_AUTO_MIGRATE"
	EnvReuseArtifacts = "OACLOAD_REUSE_ARTIFACTS"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Load reads and parses oacload.yaml from the given directory, then applies
// defaults and environment overrides and validates the result.
func Load(dir string) (*types.ProjectConfig, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return finish(&cfg)
}

// LoadFromEnv builds a configuration from defaults and environment
// variables only.
func LoadFromEnv() (*types.ProjectConfig, error) {
	return finish(&types.ProjectConfig{})
}

func finish(cfg *types.ProjectConfig) (*types.ProjectConfig, error) {
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}
	Defaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Defaults fills unset fields.
func Defaults(cfg *types.ProjectConfig) {
	if cfg.Asset == "" {
		cfg.Asset = DefaultAsset
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = fetcher.DefaultEndpoint
	}
	if cfg.WindowDays == 0 {
		cfg.WindowDays = DefaultWindowDays
	}
	if cfg.Timezone == "" {
		cfg.Timezone = schedule.DefaultTimezone
	}
	if cfg.ArtifactDir == "" {
		cfg.ArtifactDir = DefaultArtifactDir
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.Database.Table == "" {
		cfg.Database.Table = postgres.DefaultTable
	}
	if cfg.Retry.MaxAttempts == 0 {
		def := schedule.DefaultRetryPolicy()
		if cfg.Retry.BackoffSeconds == 0 {
			cfg.Retry.BackoffSeconds = def.BackoffSeconds
		}
		if cfg.Retry.BackoffMultiplier == 0 {
			cfg.Retry.BackoffMultiplier = def.BackoffMultiplier
		}
		if cfg.Retry.MaxBackoffSeconds == 0 {
			cfg.Retry.MaxBackoffSeconds = def.MaxBackoffSeconds
		}
		if len(cfg.Retry.RetryableFailures) == 0 {
			cfg.Retry.RetryableFailures = def.RetryableFailures
		}
		cfg.Retry.MaxAttempts = def.MaxAttempts
	}
}

// ApplyEnv overrides cfg with any variables lookup finds.
func ApplyEnv(cfg *types.ProjectConfig, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	str(EnvDatabaseDSN, &cfg.Database.DSN)
	str(EnvDatabaseTable, &cfg.Database.Table)
	str(EnvDBSecretARN, &cfg.Database.PasswordSecretARN)
	str(EnvEndpoint, &cfg.Endpoint)
	str(EnvAsset, &cfg.Asset)
	str(EnvArtifactDir, &cfg.ArtifactDir)
	str(EnvLogLevel, &cfg.LogLevel)
	str(EnvOTLPEndpoint, &cfg.Telemetry.OTLPEndpoint)

	if v, ok := lookup(EnvWindowDays); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWindowDays, err)
		}
		cfg.WindowDays = n
	}
	if v, ok := lookup(EnvAutoMigrate); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAutoMigrate, err)
		}
		cfg.Database.AutoMigrate = b
	}
	if v, ok := lookup(EnvReuseArtifacts); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvReuseArtifacts, err)
		}
		cfg.ReuseArtifacts = &b
	}
	return nil
}

// ParseDuration parses a Go duration string, returning fallback for "".
func ParseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", value)
	}
	return d, nil
}

func validate(cfg *types.ProjectConfig) error {
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required (or set %s)", EnvDatabaseDSN)
	}
	if !tableName.MatchString(cfg.Database.Table) {
		return fmt.Errorf("database.table %q is not a valid table name", cfg.Database.Table)
	}
	if cfg.WindowDays < 1 {
		return fmt.Errorf("windowDays must be at least 1, got %d", cfg.WindowDays)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}
	if _, err := schedule.LoadLocation(cfg.Timezone); err != nil {
		return err
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logLevel %q is not one of debug, info, warn, error", cfg.LogLevel)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.maxAttempts must be at least 1")
	}
	if cfg.Retry.BackoffSeconds < 0 || cfg.Retry.MaxBackoffSeconds < 0 {
		return fmt.Errorf("retry backoff must not be negative")
	}
	for name, v := range map[string]string{
		"requestTimeout":   cfg.RequestTimeout,
		"runTimeout":       cfg.RunTimeout,
		"breaker.cooldown": cfg.Breaker.Cooldown,
	} {
		if _, err := ParseDuration(v, 0); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// SlogLevel maps a logLevel value onto a slog level. Unknown values are info.
func SlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
