// Package config loads the import service configuration from environment
// variables, applies defaults and validates everything on startup.
package config

import (
	"strconv"
	"time"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Import    ImportConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
	Plugin    PluginConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"6m"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including waiting for
	// running imports.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout applies to non-import routes.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// StoreConfig selects and tunes the document store.
type StoreConfig struct {
	// Driver is one of postgres, sqlite, memory (default: memory)
	Driver string `env:"STORE_DRIVER" default:"memory"`

	// URL is the PostgreSQL connection string, required for the postgres driver.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// SQLitePath is the database file for the sqlite driver.
	SQLitePath string `env:"SQLITE_PATH" default:"data/jsonimport.db"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig holds import processing settings.
type ImportConfig struct {
	// MaxBodySize caps the request body, e.g. "10MB" (default: 10MB)
	MaxBodySize ByteSize `env:"IMPORT_MAX_BODY_SIZE" default:"10MB"`

	// MaxConcurrent is the number of import runs allowed at once (default: 4)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"4"`

	// MaxWait is how long a request waits for an import slot (default: 10s)
	MaxWait time.Duration `env:"IMPORT_MAX_WAIT" default:"10s"`

	// SchemaFieldTypes fills field types a request omits from the
	// collection schema. Off by default; clients send the types returned by
	// the fields and preview routes.
	SchemaFieldTypes bool `env:"IMPORT_SCHEMA_FIELD_TYPES" default:"false"`

	// TouchAfterImport re-saves created and updated documents after a run.
	TouchAfterImport bool `env:"IMPORT_TOUCH_AFTER" default:"true"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute applies to every route (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit applies to import and preview routes (default: 10)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// PluginConfig controls the import plugin.
type PluginConfig struct {
	// CollectionsFile is the YAML collection schema.
	CollectionsFile string `env:"PLUGIN_COLLECTIONS_FILE" default:"collections.yaml"`

	// Collections lists the slugs advertised with an import action. Empty
	// lists none; imports still reach every collection in the schema file.
	Collections []string `env:"PLUGIN_COLLECTIONS"`

	// Disabled keeps collections registered but mounts no import routes.
	Disabled bool `env:"PLUGIN_DISABLED" default:"false"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled        bool          `env:"OTEL_ENABLED" default:"false"`
	Stdout         bool          `env:"OTEL_STDOUT" default:"false"`
	OTLPEndpoint   string        `env:"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT" envAlt:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName    string        `env:"OTEL_SERVICE_NAME" default:"jsonimport"`
	MetricInterval time.Duration `env:"OTEL_METRIC_INTERVAL" default:"30s"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// EnabledCollections returns the configured slugs as a set, or nil when none
// are listed.
func (c *PluginConfig) EnabledCollections() map[string]bool {
	if len(c.Collections) == 0 {
		return nil
	}
	set := make(map[string]bool, len(c.Collections))
	for _, slug := range c.Collections {
		set[slug] = true
	}
	return set
}
