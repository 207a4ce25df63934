package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.True(t, cfg.Gradle.NoDaemon)
	require.Equal(t, 2, cfg.Retry.MaxRetries)
	require.Equal(t, string(RetryBackoffLinear), cfg.Retry.Backoff)
	require.Equal(t, 100*time.Millisecond, cfg.Retry.BaseDelayDuration())
	require.Equal(t, 10*time.Second, cfg.Retry.MaxDelayDuration())
	require.False(t, cfg.Telemetry.Enabled)
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, Defaults().Retry, cfg.Retry)
}

func TestLoadParsesAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.yaml")
	content := `
gradle:
  no_daemon: false
  project_cache_dir: /tmp/gradle-cache
retry:
  max_retries: 5
  backoff: exponential
  base_delay: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.False(t, cfg.Gradle.NoDaemon)
	require.Equal(t, "/tmp/gradle-cache", cfg.Gradle.ProjectCacheDir)
	require.Equal(t, 5, cfg.Retry.MaxRetries)
	require.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelayDuration())
}

func TestDelayFallbacksOnInvalidInput(t *testing.T) {
	r := RetryConfig{BaseDelay: "junk", MaxDelay: ""}
	require.Equal(t, 100*time.Millisecond, r.BaseDelayDuration())
	require.Equal(t, 10*time.Second, r.MaxDelayDuration())
}

func TestValidateRejectsBadBackoff(t *testing.T) {
	cfg := Defaults()
	cfg.Retry.Backoff = "quadratic"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsEnabledTelemetryWithoutURL(t *testing.T) {
	cfg := Defaults()
	cfg.Telemetry.Enabled = true
	require.Error(t, cfg.Validate())

	cfg.Telemetry.NATSURL = "nats://localhost:4222"
	require.NoError(t, cfg.Validate())
}

func TestNormalizeRetryBackoff(t *testing.T) {
	require.Equal(t, RetryBackoffLinear, NormalizeRetryBackoff(" Linear "))
	require.Equal(t, RetryBackoffFixed, NormalizeRetryBackoff("FIXED"))
	require.Equal(t, RetryBackoffExponential, NormalizeRetryBackoff("exponential"))
	require.Equal(t, RetryBackoffMode(""), NormalizeRetryBackoff("bogus"))
}
