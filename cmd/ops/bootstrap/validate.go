package main

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

// ValidationResult is the pass/fail outcome of an input check plus a message
// for the operator.
type ValidationResult struct {
	Valid   bool
	Message string
}

// DatabaseConnector opens and immediately closes a connection to dsn.
type DatabaseConnector interface {
	Connect(ctx context.Context, dsn string) error
}

// PgxConnector dials Postgres with pgx.
type PgxConnector struct{}

func (PgxConnector) Connect(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	return conn.Close(ctx)
}

// RedisPinger checks that a Redis URL is reachable.
type RedisPinger interface {
	Ping(ctx context.Context, opts *redis.Options) error
}

// GoRedisPinger pings with a throwaway go-redis client.
type GoRedisPinger struct{}

func (GoRedisPinger) Ping(ctx context.Context, opts *redis.Options) error {
	client := redis.NewClient(opts)
	defer client.Close()
	return client.Ping(ctx).Err()
}

// Validator holds the probes used to check operator input before it is
// written to SSM.
type Validator struct {
	dbConn DatabaseConnector
	redis  RedisPinger
	fields *validator.Validate
}

// NewValidator returns a Validator with live probes.
func NewValidator() *Validator {
	return NewValidatorWithDeps(PgxConnector{}, GoRedisPinger{})
}

// NewValidatorWithDeps injects the probes. Used by tests.
func NewValidatorWithDeps(db DatabaseConnector, r RedisPinger) *Validator {
	return &Validator{dbConn: db, redis: r, fields: validator.New()}
}

// validateTimeout bounds each live probe.
const validateTimeout = 15 * time.Second

// ValidateDatabaseURL requires a postgres:// URL with a host and verifies
// that it accepts a connection.
func (v *Validator) ValidateDatabaseURL(ctx context.Context, rawURL string) ValidationResult {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("invalid URL format: %v", err)}
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return ValidationResult{Message: fmt.Sprintf("expected postgres:// or postgresql:// scheme, got %q", parsed.Scheme)}
	}
	if parsed.Hostname() == "" {
		return ValidationResult{Message: "database URL has no host"}
	}

	connCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()
	if err := v.dbConn.Connect(connCtx, rawURL); err != nil {
		return ValidationResult{Message: fmt.Sprintf("connection failed: %v", err)}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("database connection verified (host=%s)", parsed.Hostname())}
}

// ValidateRedisURL parses a redis:// or rediss:// URL and pings it.
func (v *Validator) ValidateRedisURL(ctx context.Context, rawURL string) ValidationResult {
	opts, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("invalid Redis URL: %v", err)}
	}

	pingCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()
	if err := v.redis.Ping(pingCtx, opts); err != nil {
		return ValidationResult{Message: fmt.Sprintf("ping failed: %v", err)}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("redis reachable (addr=%s)", opts.Addr)}
}

// ValidateQueueURL accepts an https SQS queue URL.
func (v *Validator) ValidateQueueURL(_ context.Context, rawURL string) ValidationResult {
	if err := v.fields.Var(rawURL, "required,https_url"); err != nil {
		return ValidationResult{Message: "queue URL must be an https URL"}
	}
	if !strings.Contains(rawURL, "sqs") {
		return ValidationResult{Message: "queue URL does not look like an SQS endpoint"}
	}
	return ValidationResult{Valid: true, Message: "queue URL format ok"}
}

var bucketNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

// ValidateBucketName checks the S3 bucket naming rules.
func (v *Validator) ValidateBucketName(_ context.Context, name string) ValidationResult {
	if !bucketNameRegex.MatchString(name) || strings.Contains(name, "..") {
		return ValidationResult{Message: fmt.Sprintf("%q is not a valid S3 bucket name", name)}
	}
	return ValidationResult{Valid: true, Message: "bucket name ok"}
}
