package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

type testSecretProvider struct {
	values     map[string]string
	err        error
	calledWith []string
}

func (p *testSecretProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	p.calledWith = append(p.calledWith, keys...)
	if p.err != nil {
		return nil, p.err
	}
	result := make(map[string]string)
	for _, k := range keys {
		if v, ok := p.values[k]; ok {
			result[k] = v
		}
	}
	return result, nil
}

func setMinimalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "local")
	t.Setenv("DATABASE_URL", "postgres://parkwatch:pw@localhost:5432/parkwatch")
}

// unsetEnv clears key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func testDeps(t *testing.T, extra []string) loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv: func(k, v string) error {
			t.Setenv(k, v)
			return nil
		},
		environ: func() []string { return append(os.Environ(), extra...) },
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Service != "parkwatch" {
		t.Errorf("Service = %q, want parkwatch", cfg.Service)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 29*time.Second {
		t.Errorf("Server.RequestTimeout = %v, want 29s", cfg.Server.RequestTimeout)
	}
	if cfg.Forecast.LookbackDays != 14 {
		t.Errorf("Forecast.LookbackDays = %d, want 14", cfg.Forecast.LookbackDays)
	}
	if cfg.Forecast.BatchHorizonMinutes != 60 {
		t.Errorf("Forecast.BatchHorizonMinutes = %d, want 60", cfg.Forecast.BatchHorizonMinutes)
	}
	if cfg.Redis.CacheTTL != 15*time.Minute {
		t.Errorf("Redis.CacheTTL = %v, want 15m", cfg.Redis.CacheTTL)
	}
	if cfg.Scraper.Interval != 3*time.Minute {
		t.Errorf("Scraper.Interval = %v, want 3m", cfg.Scraper.Interval)
	}
	if !strings.Contains(cfg.Scraper.StatusURL, "GarageStatusPlain") {
		t.Errorf("Scraper.StatusURL = %q", cfg.Scraper.StatusURL)
	}
	if cfg.Scraper.CronSecret.IsSet() {
		t.Error("CronSecret should be empty by default")
	}
	if cfg.Observability.MetricNamespace != "ParkWatch" {
		t.Errorf("MetricNamespace = %q", cfg.Observability.MetricNamespace)
	}
	if cfg.Build.Version != "dev" {
		t.Errorf("Build.Version = %q, want dev", cfg.Build.Version)
	}
	if time.Local != time.UTC {
		t.Error("LoadConfig should force time.Local to UTC")
	}
}

func TestLoadConfigMissingDatabaseURL(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	unsetEnv(t, "DATABASE_URL")

	_, err := LoadConfig(nil)

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
	if cfgErr.Type != ErrValidation {
		t.Errorf("Type = %s, want %s", cfgErr.Type, ErrValidation)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		errType ConfigErrorType
	}{
		{"unknown env", "APP_ENV", "qa", ErrValidation},
		{"unparsable duration", "SCRAPER_TIMEOUT", "soon", ErrParsing},
		{"horizon too large", "BATCH_HORIZON_MINUTES", "5000", ErrValidation},
		{"bad timezone", "FORECAST_TIMEZONE", "Mars/Olympus", ErrValidation},
		{"bad log level", "LOG_LEVEL", "verbose", ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setMinimalEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig(NewEnvVarProvider())

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
			if cfgErr.Type != tt.errType {
				t.Errorf("Type = %s, want %s", cfgErr.Type, tt.errType)
			}
		})
	}
}

func TestLoadConfigResolvesSSMParams(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	unsetEnv(t, "DATABASE_URL")
	unsetEnv(t, "REDIS_URL")
	provider := &testSecretProvider{values: map[string]string{
		"/dev/parkwatch/database_url": "postgres://ssm@db/parkwatch",
		"/dev/parkwatch/redis_url":    "redis://cache:6379/0",
	}}
	deps := testDeps(t, []string{
		"DATABASE_URL_SSM_PARAM=/dev/parkwatch/database_url",
		"REDIS_URL_SSM_PARAM=/dev/parkwatch/redis_url",
	})

	cfg, err := loadConfigWithDeps(provider, deps)
	if err != nil {
		t.Fatalf("loadConfigWithDeps returned error: %v", err)
	}

	if cfg.Database.URL.Unmask() != "postgres://ssm@db/parkwatch" {
		t.Errorf("Database.URL not resolved from SSM")
	}
	if cfg.Redis.URL.Unmask() != "redis://cache:6379/0" {
		t.Errorf("Redis.URL not resolved from SSM")
	}
	if len(provider.calledWith) != 2 || provider.calledWith[0] != "/dev/parkwatch/database_url" {
		t.Errorf("provider called with %v", provider.calledWith)
	}
}

func TestLoadConfigEnvOverridesSSM(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("DATABASE_URL", "postgres://direct@db/parkwatch")
	provider := &testSecretProvider{values: map[string]string{}}
	deps := testDeps(t, []string{"DATABASE_URL_SSM_PARAM=/dev/parkwatch/database_url"})

	cfg, err := loadConfigWithDeps(provider, deps)
	if err != nil {
		t.Fatalf("loadConfigWithDeps returned error: %v", err)
	}
	if cfg.Database.URL.Unmask() != "postgres://direct@db/parkwatch" {
		t.Error("a directly set variable must win over SSM")
	}
	if len(provider.calledWith) != 0 {
		t.Errorf("provider should not be called, got %v", provider.calledWith)
	}
}

func TestLoadConfigSSMFailures(t *testing.T) {
	tests := []struct {
		name     string
		provider SecretProvider
		errType  ConfigErrorType
	}{
		{"nil provider", nil, ErrSSMResolution},
		{"provider error", &testSecretProvider{err: errors.New("throttled")}, ErrSSMResolution},
		{"parameter missing", &testSecretProvider{values: map[string]string{}}, ErrMissingEnv},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", "prod")
			unsetEnv(t, "DATABASE_URL")
			deps := testDeps(t, []string{"DATABASE_URL_SSM_PARAM=/prod/parkwatch/database_url"})

			_, err := loadConfigWithDeps(tt.provider, deps)

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
			if cfgErr.Type != tt.errType {
				t.Errorf("Type = %s, want %s", cfgErr.Type, tt.errType)
			}
			if !strings.Contains(cfgErr.Error(), "DATABASE_URL") && tt.errType != ErrSSMResolution {
				t.Errorf("error should name the target variable: %v", cfgErr)
			}
		})
	}
}

func TestResolveSecretsLocalIsNoop(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("CRON_SECRET_SSM_PARAM", "/local/cron")

	if err := ResolveSecrets(nil); err != nil {
		t.Errorf("ResolveSecrets in local mode returned %v", err)
	}
}

func TestEnvVarProvider(t *testing.T) {
	t.Setenv("PW_TEST_SECRET", "s3cr3t")
	unsetEnv(t, "PW_TEST_MISSING")

	got, err := NewEnvVarProvider().GetParametersBatch(context.Background(), []string{"PW_TEST_SECRET", "PW_TEST_MISSING"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got["PW_TEST_SECRET"] != "s3cr3t" {
		t.Errorf("GetParametersBatch = %v", got)
	}
}

func TestBuildInfoString(t *testing.T) {
	b := BuildInfo{Version: "1.2.0", Commit: "abc1234", BuildTime: "2025-08-17T21:00:00Z"}
	if b.String() != "1.2.0 (abc1234, built 2025-08-17T21:00:00Z)" {
		t.Errorf("String() = %q", b.String())
	}
}
