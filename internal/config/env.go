package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// loadEnvFile loads environment variables from .env/.env.local files.
// It attempts each supported filename in order and stops at the first
// successfully parsed file. Existing process environment is not overwritten.
func loadEnvFile() {
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err == nil {
			return
		}
	}
}

// applyEnvOverrides lets a handful of environment variables override file
// settings, mirroring the flags most often tweaked per-machine rather than
// per-project.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FLUTTER_GRADLE_WRAPPER"); v != "" {
		c.Gradle.Wrapper = v
	}
	if v := os.Getenv("FLUTTER_GRADLE_CACHE_DIR"); v != "" {
		c.Gradle.ProjectCacheDir = v
	}
	if v := os.Getenv("FLUTTER_BUILD_NATS_URL"); v != "" {
		c.Telemetry.NATSURL = v
	}
	if v := os.Getenv("FLUTTER_BUILD_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Retry.MaxRetries = n
		}
	}
}
