// Package config provides centralized configuration management for the
// application. Settings are layered: built-in defaults, then an optional
// photoflow.toml file, then environment variable overrides. Everything is
// validated on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig    `toml:"server"`
	Ops      OpsConfig       `toml:"ops"`
	Build    BuildConfig     `toml:"build"`
	Catalog  CatalogConfig   `toml:"catalog"`
	History  HistoryConfig   `toml:"history"`
	Rate     RateLimitConfig `toml:"rate"`
	Security SecurityConfig  `toml:"security"`
	Logging  LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server settings. The server is a local control
// API, so it binds loopback unless told otherwise.
type ServerConfig struct {
	// Host is the interface to bind to (default: 127.0.0.1)
	Host string `toml:"host" env:"SERVER_HOST" default:"127.0.0.1"`

	// Port is the port to listen on (default: 8787)
	Port int `toml:"port" env:"SERVER_PORT" default:"8787"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `toml:"read_timeout" env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `toml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `toml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `toml:"request_timeout" env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// OpsConfig holds settings for long-running file operations (builds,
// rebuilds, rename runs).
type OpsConfig struct {
	// MaxConcurrent is the maximum number of parallel operations (default: 2)
	MaxConcurrent int `toml:"max_concurrent" env:"OPS_MAX_CONCURRENT" default:"2"`

	// MaxWait is how long to wait for an operation slot (default: 30s)
	MaxWait time.Duration `toml:"max_wait" env:"OPS_MAX_WAIT" default:"30s"`

	// Timeout is the maximum duration for a single operation (default: 15m)
	Timeout time.Duration `toml:"timeout" env:"OPS_TIMEOUT" default:"15m"`

	// FileConcurrency bounds parallel file copies and moves inside one
	// operation (default: 4)
	FileConcurrency int `toml:"file_concurrency" env:"OPS_FILE_CONCURRENCY" default:"4"`

	// CleanupDelay is how long a finished operation stays queryable
	// before its record is dropped (default: 5m)
	CleanupDelay time.Duration `toml:"cleanup_delay" env:"OPS_CLEANUP_DELAY" default:"5m"`
}

// BuildConfig holds CSV synthesis defaults.
type BuildConfig struct {
	// OutputName is the default file name for generated CSVs (default: upload.csv)
	OutputName string `toml:"output_name" env:"BUILD_OUTPUT_NAME" default:"upload.csv"`

	// IncludeManualWithoutTeam emits manual photos that match no known
	// team under a fallback template (default: true)
	IncludeManualWithoutTeam bool `toml:"include_manual_without_team" env:"BUILD_INCLUDE_MANUAL_WITHOUT_TEAM" default:"true"`
}

// CatalogConfig holds template catalog persistence settings.
type CatalogConfig struct {
	// Path is the catalog JSON file location (default: catalog.json)
	Path string `toml:"path" env:"CATALOG_PATH" default:"catalog.json"`

	// KeepBackups makes a timestamped copy before every overwrite (default: true)
	KeepBackups bool `toml:"keep_backups" env:"CATALOG_KEEP_BACKUPS" default:"true"`
}

// HistoryConfig holds run-history database settings.
type HistoryConfig struct {
	// Path is the SQLite database file location (default: photoflow.db)
	Path string `toml:"path" env:"HISTORY_PATH" default:"photoflow.db"`

	// RetentionDays is how long finished runs are kept (default: 180)
	RetentionDays int `toml:"retention_days" env:"HISTORY_RETENTION_DAYS" default:"180"`

	// CheckInterval is how often the retention pruner runs (default: 24h)
	CheckInterval time.Duration `toml:"check_interval" env:"HISTORY_CHECK_INTERVAL" default:"24h"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `toml:"enabled" env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the rate limit per IP (default: 120)
	RequestsPerMinute int `toml:"requests_per_minute" env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`
}

// SecurityConfig holds security-related settings. API keys only matter
// when the server binds a non-loopback interface.
type SecurityConfig struct {
	// RequireAPIKey enforces X-API-Key validation (default: false)
	RequireAPIKey bool `toml:"require_api_key" env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `toml:"api_keys" env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `toml:"trusted_proxies" env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `toml:"level" env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `toml:"format" env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
