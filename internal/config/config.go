// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Retry    RetryConfig
	Fetch    FetchConfig
	Shopify  ShopifyConfig
	Script   ScriptConfig
	Sync     SyncConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"120s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds one admin action. A sync walks every product CSV
	// in sequence, so this is longer than a typical API timeout.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"110s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is "postgres", "mysql" or "sqlite" (default: postgres)
	Driver string `env:"DB_DRIVER" default:"postgres"`

	// URL is the connection string (required). For mysql this is a
	// go-sql-driver DSN; for sqlite a file path or ":memory:". Supports both
	// DATABASE_URL and DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// MaxRetryAttempts bounds DB_RETRY_ATTEMPTS.
const MaxRetryAttempts = 20

// RetryConfig controls retries of storage calls on connectivity errors.
type RetryConfig struct {
	Attempts  int           `env:"DB_RETRY_ATTEMPTS" default:"5"`
	BaseDelay time.Duration `env:"DB_RETRY_BASE_DELAY" default:"500ms"`
}

// FetchConfig holds settings for downloading merchant review CSVs.
type FetchConfig struct {
	Timeout   time.Duration `env:"CSV_FETCH_TIMEOUT" default:"20s"`
	MaxBytes  int64         `env:"CSV_MAX_BYTES" default:"10485760"`
	UserAgent string        `env:"CSV_USER_AGENT" default:"ReviewGallery/1.0"`
}

// ShopifyConfig holds Admin API settings for the metafield mirror.
type ShopifyConfig struct {
	// AdminToken is the Admin API access token. When empty the metafield
	// mirror is disabled and saves only touch the local database.
	AdminToken string        `env:"SHOPIFY_ADMIN_TOKEN"`
	APIVersion string        `env:"SHOPIFY_API_VERSION" default:"2024-10"`
	Namespace  string        `env:"SHOPIFY_METAFIELD_NAMESPACE" default:"review_gallery"`
	Timeout    time.Duration `env:"SHOPIFY_TIMEOUT" default:"30s"`
}

// ScriptConfig holds settings for the merchant's Apps Script endpoint.
type ScriptConfig struct {
	Timeout time.Duration `env:"SCRIPT_TIMEOUT" default:"15s"`
}

// SyncConfig bounds concurrent sync runs across shops.
type SyncConfig struct {
	MaxConcurrent int           `env:"SYNC_MAX_CONCURRENT" default:"4"`
	MaxWait       time.Duration `env:"SYNC_MAX_WAIT" default:"10s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey makes every request carry X-API-Key. The hosting
	// platform's proxy sets it after completing OAuth.
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
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
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// MirrorEnabled reports whether an Admin API token is configured.
func (c *ShopifyConfig) MirrorEnabled() bool {
	return c.AdminToken != ""
}
