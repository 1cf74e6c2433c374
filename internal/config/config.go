// Package config defines the configuration shared by the parkwatch binaries.
// Configuration is loaded once at process start (or Lambda cold start) and is
// immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format makes LoadConfig fail, and the
// binaries exit immediately.
package config

import (
	"fmt"
	"time"

	"parkwatch/internal/types"
)

// SecretString is an alias for types.SecretString so config consumers do not
// need to import types for secret fields.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Each binary reads only the
// subsets it needs; optional integrations (Redis, SQS, S3) are disabled when
// their settings are empty.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"parkwatch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Redis         RedisConfig
	Scraper       ScraperConfig
	Forecast      ForecastConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings for cmd/api.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s" validate:"gt=0"`
}

// DatabaseConfig holds the Postgres connection string and pool tuning.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10" validate:"gte=1"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"1" validate:"gte=0"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-west-2"`

	ArchiveBucket         string `envconfig:"ARCHIVE_BUCKET"`
	ReadingsIngestedQueue string `envconfig:"SQS_READINGS_INGESTED" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// RedisConfig holds the forecast cache connection. An empty URL disables the
// cache.
type RedisConfig struct {
	URL      SecretString  `envconfig:"REDIS_URL"`
	CacheTTL time.Duration `envconfig:"FORECAST_CACHE_TTL" default:"15m" validate:"gt=0"`
}

// ScraperConfig controls how the parking status page is fetched.
type ScraperConfig struct {
	StatusURL string        `envconfig:"PARKING_STATUS_URL" default:"https://sjsuparkingstatus.sjsu.edu/GarageStatusPlain" validate:"required,url"`
	UserAgent string        `envconfig:"SCRAPER_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`
	Timeout   time.Duration `envconfig:"SCRAPER_TIMEOUT" default:"20s" validate:"gt=0"`
	Interval  time.Duration `envconfig:"SCRAPE_INTERVAL" default:"3m" validate:"gt=0"`

	// CronSecret guards POST /v1/scrape. Empty leaves the endpoint open.
	CronSecret SecretString `envconfig:"CRON_SECRET"`
}

// ForecastConfig tunes the forecaster and the batch refresh.
type ForecastConfig struct {
	LookbackDays        int    `envconfig:"FORECAST_LOOKBACK_DAYS" default:"14" validate:"gte=1,lte=60"`
	Timezone            string `envconfig:"FORECAST_TIMEZONE" default:"UTC"`
	BatchConcurrency    int    `envconfig:"BATCH_CONCURRENCY" default:"8" validate:"gte=1"`
	BatchHorizonMinutes int    `envconfig:"BATCH_HORIZON_MINUTES" default:"60" validate:"gte=1,lte=1440"`
}

// Location resolves Timezone. Hour-of-day and weekday grouping happen in this
// location.
func (f ForecastConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid FORECAST_TIMEZONE %q: %w", f.Timezone, err)
	}
	return loc, nil
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"ParkWatch"`
	MetricsEnabled  bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
