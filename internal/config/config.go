// Package config loads application configuration from command-line flags,
// environment variables, a .env file and an optional YAML config file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	Server     ServerConfig
	Store      StoreConfig
	Cache      CacheConfig
	Annotation AnnotationConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Search     SearchConfig
	Storage    StorageConfig
	Ingest     IngestConfig
	MLJob      MLJobConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	DataDir     string // root for the database, search index and uploaded images
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // json, pretty, or empty for environment default
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Driver string // badger or sqlite
	Path   string // badger directory or sqlite file
}

// CacheConfig controls the repository read-through cache.
type CacheConfig struct {
	Enabled  bool
	TTL      time.Duration
	Capacity int
}

// AnnotationConfig bounds annotation input.
type AnnotationConfig struct {
	MaxCoordinate  float64
	MaxDescription int
}

// AuthConfig holds API authentication configuration.
// Authentication is disabled when APIKey is empty.
type AuthConfig struct {
	APIKey        string
	TokenKey      string // 64 hex chars, PASETO v4 local key; generated under DataDir when empty
	TokenDuration time.Duration
}

// Enabled reports whether bearer authentication is enforced.
func (a AuthConfig) Enabled() bool {
	return a.APIKey != ""
}

// RateLimitConfig configures the per-client request limiter.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// SearchConfig configures the full-text index.
type SearchConfig struct {
	Path     string
	InMemory bool
}

// StorageConfig configures uploaded image storage.
type StorageConfig struct {
	ImageDir       string
	MaxUploadBytes int64
}

// IngestConfig configures the drop-directory watcher. Disabled when Dir is empty.
type IngestConfig struct {
	Dir       string
	ProjectID string
	Debounce  time.Duration
}

// MLJobConfig configures the stale job sweeper.
type MLJobConfig struct {
	StaleAfter    time.Duration
	SweepInterval time.Duration
}

// LoadConfig loads configuration using the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load parses args and resolves every setting with precedence:
//  1. Command-line flags (highest priority).
//  2. Environment variables (SATIN_*).
//  3. .env file.
//  4. YAML config file (--config or SATIN_CONFIG).
//  5. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("satin", flag.ContinueOnError)
	r := newResolver(fs)

	configFile := fs.String("config", "", "Path to YAML config file")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// .env only fills variables that are not already set.
	_ = loadEnvFile(*envFile)

	path := firstNonEmpty(*configFile, os.Getenv("SATIN_CONFIG"))
	if path != "" {
		file, err := loadYAMLFile(path)
		if err != nil {
			return nil, err
		}
		r.file = file
	}

	cfg, err := r.build()
	if err != nil {
		return nil, err
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that all config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("environment is required")
	}
	if !slices.Contains([]string{"development", "staging", "production"}, c.App.Environment) {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Logger.Level)) {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}
	if c.Store.Driver != DriverBadger && c.Store.Driver != DriverSQLite {
		return fmt.Errorf("invalid store driver: %s (must be %s or %s)", c.Store.Driver, DriverBadger, DriverSQLite)
	}
	if c.Store.Path == "" {
		return errors.New("store path cannot be empty after expansion")
	}
	if c.Cache.Enabled && (c.Cache.TTL <= 0 || c.Cache.Capacity <= 0) {
		return errors.New("cache ttl and capacity must be positive when the cache is enabled")
	}
	if c.Annotation.MaxCoordinate <= 0 {
		return errors.New("annotation max coordinate must be positive")
	}
	if c.Annotation.MaxDescription <= 0 {
		return errors.New("annotation max description must be positive")
	}
	if c.Auth.TokenKey != "" && len(c.Auth.TokenKey) != 64 {
		return errors.New("auth token key must be 64 hex characters")
	}
	if c.Auth.Enabled() && c.Auth.TokenDuration <= 0 {
		return errors.New("auth token duration must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return errors.New("rate limit requires positive requests per second and burst")
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return errors.New("max upload size must be positive")
	}
	if c.Ingest.Dir != "" && c.Ingest.ProjectID == "" {
		return errors.New("ingest dir requires an ingest project id")
	}
	return nil
}

// expandPaths resolves ~ and relative paths, deriving unset paths from DataDir.
func (c *Config) expandPaths() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	if c.App.DataDir, err = expandPath(c.App.DataDir, filepath.Join(home, ".satin")); err != nil {
		return fmt.Errorf("invalid data dir: %w", err)
	}

	storeDefault := filepath.Join(c.App.DataDir, "db")
	if c.Store.Driver == DriverSQLite {
		storeDefault = filepath.Join(c.App.DataDir, "satin.db")
	}
	if c.Store.Path, err = expandPath(c.Store.Path, storeDefault); err != nil {
		return fmt.Errorf("invalid store path: %w", err)
	}
	if c.Search.Path, err = expandPath(c.Search.Path, filepath.Join(c.App.DataDir, "search.bleve")); err != nil {
		return fmt.Errorf("invalid search path: %w", err)
	}
	if c.Storage.ImageDir, err = expandPath(c.Storage.ImageDir, filepath.Join(c.App.DataDir, "images")); err != nil {
		return fmt.Errorf("invalid image dir: %w", err)
	}
	if c.Ingest.Dir != "" {
		if c.Ingest.Dir, err = expandPath(c.Ingest.Dir, ""); err != nil {
			return fmt.Errorf("invalid ingest dir: %w", err)
		}
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
