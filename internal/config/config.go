// Package config defines the global configuration structure for the CropSight
// platform. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved from the OS environment, with a .env file as fallback
// for local development. Any missing required value or invalid format causes
// the application to fail immediately on startup.
package config

import (
	"time"

	"cropsight/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the CropSight platform.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"cropsight-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Provider ProviderConfig
	Poller   PollerConfig
	Archive  ArchiveConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server tuning parameters.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"25s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
	// CORS origins for the dashboard; "*" in local only.
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AuthConfig holds API token verification settings.
type AuthConfig struct {
	// JWTSecret signs and verifies bearer tokens issued to dashboard users
	// and pollers.
	JWTSecret SecretString  `envconfig:"JWT_SECRET" validate:"required,min=32"`
	Issuer    string        `envconfig:"JWT_ISSUER" default:"cropsight"`
	TokenTTL  time.Duration `envconfig:"JWT_TOKEN_TTL" default:"24h"`
}

// ProviderConfig holds settings for the upstream observation provider the
// signal poller pulls from.
type ProviderConfig struct {
	BaseURL string        `envconfig:"PROVIDER_BASE_URL" validate:"omitempty,url"`
	APIKey  SecretString  `envconfig:"PROVIDER_API_KEY"`
	Timeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`
}

// PollerConfig holds signal poller scheduling parameters.
type PollerConfig struct {
	Interval    time.Duration `envconfig:"POLL_INTERVAL" default:"1h"`
	Concurrency int           `envconfig:"POLL_CONCURRENCY" default:"4"`
}

// ArchiveConfig holds raw payload archival settings.
type ArchiveConfig struct {
	// Dir is the directory raw provider payloads are archived into,
	// zstd-compressed. Empty disables archival.
	Dir string `envconfig:"ARCHIVE_DIR"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
