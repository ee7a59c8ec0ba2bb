package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// option describes one setting and every place it can come from.
type option struct {
	flag  string
	env   string
	key   string // dotted YAML path
	def   string
	usage string
}

var options = []option{
	{"env", "SATIN_ENV", "app.environment", "development", "Environment (development, staging, production)"},
	{"data-dir", "SATIN_DATA_DIR", "app.data_dir", "", "Base directory for data (default: ~/.satin)"},

	{"log-level", "SATIN_LOG_LEVEL", "logger.level", "info", "Log level (debug, info, warn, error)"},
	{"log-format", "SATIN_LOG_FORMAT", "logger.format", "", "Log format (json, pretty)"},

	{"host", "SATIN_SERVER_HOST", "server.host", "", "Listen host"},
	{"port", "SATIN_SERVER_PORT", "server.port", "8080", "Server port"},
	{"read-timeout", "SATIN_SERVER_READ_TIMEOUT", "server.read_timeout", "15s", "HTTP read timeout"},
	{"write-timeout", "SATIN_SERVER_WRITE_TIMEOUT", "server.write_timeout", "30s", "HTTP write timeout"},
	{"idle-timeout", "SATIN_SERVER_IDLE_TIMEOUT", "server.idle_timeout", "60s", "HTTP idle timeout"},
	{"cors-origins", "SATIN_CORS_ORIGINS", "server.cors_origins", "*", "Comma-separated allowed CORS origins"},

	{"store-driver", "SATIN_STORE_DRIVER", "store.driver", DriverBadger, "Document store backend (badger, sqlite)"},
	{"store-path", "SATIN_STORE_PATH", "store.path", "", "Document store path"},

	{"cache-enabled", "SATIN_CACHE_ENABLED", "cache.enabled", "true", "Enable the repository read cache"},
	{"cache-ttl", "SATIN_CACHE_TTL", "cache.ttl", "5m", "Repository cache entry lifetime"},
	{"cache-capacity", "SATIN_CACHE_CAPACITY", "cache.capacity", "1000", "Repository cache capacity"},

	{"max-coordinate", "SATIN_MAX_COORDINATE", "annotation.max_coordinate", "10000", "Largest bounding box coordinate"},
	{"max-description", "SATIN_MAX_DESCRIPTION", "annotation.max_description", "2000", "Longest annotation description"},

	{"api-key", "SATIN_API_KEY", "auth.api_key", "", "API key exchanged for bearer tokens (empty disables auth)"},
	{"token-key", "SATIN_TOKEN_KEY", "auth.token_key", "", "PASETO v4 key, 64 hex characters (generated in the data dir when empty)"},
	{"token-duration", "SATIN_TOKEN_DURATION", "auth.token_duration", "1h", "Bearer token lifetime"},

	{"rate-limit", "SATIN_RATE_LIMIT", "rate_limit.enabled", "true", "Enable per-client rate limiting"},
	{"rate-limit-rps", "SATIN_RATE_LIMIT_RPS", "rate_limit.rps", "20", "Requests per second per client"},
	{"rate-limit-burst", "SATIN_RATE_LIMIT_BURST", "rate_limit.burst", "40", "Burst size per client"},

	{"search-path", "SATIN_SEARCH_PATH", "search.path", "", "Search index directory"},
	{"search-in-memory", "SATIN_SEARCH_IN_MEMORY", "search.in_memory", "false", "Keep the search index in memory"},

	{"image-dir", "SATIN_IMAGE_DIR", "storage.image_dir", "", "Uploaded image directory"},
	{"max-upload", "SATIN_MAX_UPLOAD_BYTES", "storage.max_upload_bytes", "52428800", "Largest accepted upload in bytes"},

	{"ingest-dir", "SATIN_INGEST_DIR", "ingest.dir", "", "Directory watched for new images"},
	{"ingest-project", "SATIN_INGEST_PROJECT", "ingest.project_id", "", "Project receiving ingested images"},
	{"ingest-debounce", "SATIN_INGEST_DEBOUNCE", "ingest.debounce", "500ms", "Quiet period before an ingested file is registered"},

	{"job-stale-after", "SATIN_JOB_STALE_AFTER", "mljob.stale_after", "30m", "Running ML jobs older than this are failed"},
	{"job-sweep-interval", "SATIN_JOB_SWEEP_INTERVAL", "mljob.sweep_interval", "1m", "ML job sweeper interval"},
}

type resolver struct {
	flags map[string]*string
	file  map[string]string
	errs  []error
}

func newResolver(fs *flag.FlagSet) *resolver {
	r := &resolver{flags: make(map[string]*string, len(options))}
	for _, o := range options {
		r.flags[o.key] = fs.String(o.flag, "", o.usage)
	}
	return r
}

// get returns the first non-empty value from flag, env var, config file, or default.
func (r *resolver) get(key string) string {
	for _, o := range options {
		if o.key != key {
			continue
		}
		if v := r.flags[key]; v != nil && *v != "" {
			return *v
		}
		if v := os.Getenv(o.env); v != "" {
			return v
		}
		if v, ok := r.file[key]; ok && v != "" {
			return v
		}
		return o.def
	}
	panic("config: unknown key " + key)
}

func (r *resolver) str(key string) string {
	return strings.TrimSpace(r.get(key))
}

// boolean accepts "true", "1", "yes" (case-insensitive) as true.
func (r *resolver) boolean(key string) bool {
	v := strings.ToLower(r.str(key))
	return v == "true" || v == "1" || v == "yes"
}

func (r *resolver) integer(key string) int {
	v, err := strconv.Atoi(r.str(key))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s %q: %w", key, r.str(key), err))
	}
	return v
}

func (r *resolver) int64(key string) int64 {
	v, err := strconv.ParseInt(r.str(key), 10, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s %q: %w", key, r.str(key), err))
	}
	return v
}

func (r *resolver) float(key string) float64 {
	v, err := strconv.ParseFloat(r.str(key), 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s %q: %w", key, r.str(key), err))
	}
	return v
}

func (r *resolver) duration(key string) time.Duration {
	v, err := time.ParseDuration(r.str(key))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s %q: %w", key, r.str(key), err))
	}
	return v
}

func (r *resolver) list(key string) []string {
	var out []string
	for part := range strings.SplitSeq(r.str(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r *resolver) build() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Environment: r.str("app.environment"),
			DataDir:     r.str("app.data_dir"),
		},
		Logger: LoggerConfig{
			Level:  r.str("logger.level"),
			Format: r.str("logger.format"),
		},
		Server: ServerConfig{
			Host:         r.str("server.host"),
			Port:         r.str("server.port"),
			ReadTimeout:  r.duration("server.read_timeout"),
			WriteTimeout: r.duration("server.write_timeout"),
			IdleTimeout:  r.duration("server.idle_timeout"),
			CORSOrigins:  r.list("server.cors_origins"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(r.str("store.driver")),
			Path:   r.str("store.path"),
		},
		Cache: CacheConfig{
			Enabled:  r.boolean("cache.enabled"),
			TTL:      r.duration("cache.ttl"),
			Capacity: r.integer("cache.capacity"),
		},
		Annotation: AnnotationConfig{
			MaxCoordinate:  r.float("annotation.max_coordinate"),
			MaxDescription: r.integer("annotation.max_description"),
		},
		Auth: AuthConfig{
			APIKey:        r.str("auth.api_key"),
			TokenKey:      r.str("auth.token_key"),
			TokenDuration: r.duration("auth.token_duration"),
		},
		RateLimit: RateLimitConfig{
			Enabled:           r.boolean("rate_limit.enabled"),
			RequestsPerSecond: r.float("rate_limit.rps"),
			Burst:             r.integer("rate_limit.burst"),
		},
		Search: SearchConfig{
			Path:     r.str("search.path"),
			InMemory: r.boolean("search.in_memory"),
		},
		Storage: StorageConfig{
			ImageDir:       r.str("storage.image_dir"),
			MaxUploadBytes: r.int64("storage.max_upload_bytes"),
		},
		Ingest: IngestConfig{
			Dir:       r.str("ingest.dir"),
			ProjectID: r.str("ingest.project_id"),
			Debounce:  r.duration("ingest.debounce"),
		},
		MLJob: MLJobConfig{
			StaleAfter:    r.duration("mljob.stale_after"),
			SweepInterval: r.duration("mljob.sweep_interval"),
		},
	}

	if len(r.errs) > 0 {
		return nil, errors.Join(r.errs...)
	}
	return cfg, nil
}
