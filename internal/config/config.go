package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Gradle    GradleConfig    `yaml:"gradle"`
	Retry     RetryConfig     `yaml:"retry"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	History   HistoryConfig   `yaml:"history"`
}

// GradleConfig controls how the Gradle wrapper is invoked.
type GradleConfig struct {
	Wrapper         string `yaml:"wrapper,omitempty"`           // Path override for the gradlew wrapper script
	NoDaemon        bool   `yaml:"no_daemon"`                   // Pass --no-daemon to every invocation
	ProjectCacheDir string `yaml:"project_cache_dir,omitempty"` // Forwarded as --project-cache-dir
	LocalEngine     string `yaml:"local_engine,omitempty"`      // -Plocal-engine-build-mode override directory
	LocalEngineHost string `yaml:"local_engine_host,omitempty"` // -Plocal-engine-host-out override directory
}

// RetryConfig holds raw retry/backoff settings before normalization into a policy.
// Delays are duration strings ("100ms", "10s") parsed during validation.
type RetryConfig struct {
	MaxRetries int    `yaml:"max_retries"`
	Backoff    string `yaml:"backoff,omitempty"` // fixed|linear|exponential
	BaseDelay  string `yaml:"base_delay,omitempty"`
	MaxDelay   string `yaml:"max_delay,omitempty"`
}

// BaseDelayDuration parses BaseDelay, falling back to the default on empty or invalid input.
func (r RetryConfig) BaseDelayDuration() time.Duration {
	if d, err := time.ParseDuration(r.BaseDelay); err == nil && d > 0 {
		return d
	}
	return 100 * time.Millisecond
}

// MaxDelayDuration parses MaxDelay, falling back to the default on empty or invalid input.
func (r RetryConfig) MaxDelayDuration() time.Duration {
	if d, err := time.ParseDuration(r.MaxDelay); err == nil && d > 0 {
		return d
	}
	return 10 * time.Second
}

// TelemetryConfig enables the optional NATS event publisher.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// HistoryConfig configures the local build-history database.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"` // SQLite file path; empty disables history
}

// Load reads configuration from a YAML file, applying defaults and
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	loadEnvFile()

	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns the baseline configuration used when no file is present.
func Defaults() *Config {
	return &Config{
		Gradle: GradleConfig{NoDaemon: true},
		Retry: RetryConfig{
			MaxRetries: 2,
			Backoff:    string(RetryBackoffLinear),
			BaseDelay:  "100ms",
			MaxDelay:   "10s",
		},
		Telemetry: TelemetryConfig{Subject: "flutter.build.events"},
	}
}

// Validate ensures the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries cannot be negative")
	}
	if c.Retry.BaseDelay != "" {
		if _, err := time.ParseDuration(c.Retry.BaseDelay); err != nil {
			return fmt.Errorf("retry.base_delay: %w", err)
		}
	}
	if c.Retry.MaxDelay != "" {
		if _, err := time.ParseDuration(c.Retry.MaxDelay); err != nil {
			return fmt.Errorf("retry.max_delay: %w", err)
		}
	}
	if c.Retry.Backoff != "" && NormalizeRetryBackoff(c.Retry.Backoff) == "" {
		return fmt.Errorf("retry.backoff %q is not one of fixed, linear, exponential", c.Retry.Backoff)
	}
	if c.Telemetry.Enabled && c.Telemetry.NATSURL == "" {
		return fmt.Errorf("telemetry.nats_url is required when telemetry is enabled")
	}
	return nil
}
