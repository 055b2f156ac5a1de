// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Save     SaveConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// StoreConfig selects and configures the record store.
type StoreConfig struct {
	// Driver is the record store backend: memory, sqlite or postgres (default: memory)
	Driver string `env:"STORE_DRIVER" default:"memory"`

	// URL is the PostgreSQL connection string or SQLite file path
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// SeedRows is the number of demo records inserted into empty tables (default: 25, 0 disables)
	SeedRows int `env:"STORE_SEED_ROWS" default:"25"`
}

// SaveConfig holds save batch and control session settings.
type SaveConfig struct {
	// CallTimeout bounds each record update of a batch (default: 30s)
	CallTimeout time.Duration `env:"SAVE_CALL_TIMEOUT" default:"30s"`

	// MaxInFlight caps concurrent record updates per batch; 0 means no cap (default: 0)
	MaxInFlight int `env:"SAVE_MAX_IN_FLIGHT" default:"0"`

	// FailurePolicy is what a failed batch does to pending edits: batch or per-record (default: batch)
	FailurePolicy string `env:"SAVE_FAILURE_POLICY" default:"batch"`

	// MaxConcurrentBatches is the number of save batches running at once across controls (default: 4)
	MaxConcurrentBatches int `env:"SAVE_MAX_CONCURRENT_BATCHES" default:"4"`

	// MaxWaitTime is how long a save waits for a batch slot (default: 10s)
	MaxWaitTime time.Duration `env:"SAVE_MAX_WAIT_TIME" default:"10s"`

	// PageSize is the number of rows a control loads per refresh (default: 50)
	PageSize int `env:"SAVE_PAGE_SIZE" default:"50"`

	// ControlIdleTimeout closes controls unused for this long (default: 30m)
	ControlIdleTimeout time.Duration `env:"CONTROL_IDLE_TIMEOUT" default:"30m"`

	// ReaperInterval is how often idle controls are checked (default: 1m)
	ReaperInterval time.Duration `env:"CONTROL_REAPER_INTERVAL" default:"1m"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey rejects /api requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
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
