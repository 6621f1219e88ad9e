package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://baraag.net", cfg.API.BaseURL)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 3, cfg.RateLimit.MaxRetries)
	assert.Equal(t, ".", cfg.Output.BaseDirectory)
	assert.Equal(t, 60*time.Second, cfg.Download.Timeout)
	assert.False(t, cfg.Download.ContinueOnError)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BARAAGDL_BASE_URL", "https://other.example")
	t.Setenv("BARAAGDL_REQUESTS_PER_MINUTE", "120")
	t.Setenv("BARAAGDL_OUTPUT_DIR", "/tmp/archive")
	t.Setenv("BARAAGDL_CONTINUE_ON_ERROR", "true")
	t.Setenv("BARAAGDL_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "https://other.example", cfg.API.BaseURL)
	assert.Equal(t, 120, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, "/tmp/archive", cfg.Output.BaseDirectory)
	assert.True(t, cfg.Download.ContinueOnError)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  base_url: https://file.example
rate_limit:
  requests_per_minute: 30
output:
  base_directory: /data/baraag
download:
  continue_on_error: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "https://file.example", cfg.API.BaseURL)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, "/data/baraag", cfg.Output.BaseDirectory)
	assert.True(t, cfg.Download.ContinueOnError)

	// Untouched fields keep their defaults
	assert.Equal(t, 3, cfg.RateLimit.MaxRetries)
}

func TestLoadFromFileMissingPathIsError(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.API.BaseURL = "" }},
		{"non-http base url", func(c *Config) { c.API.BaseURL = "ftp://baraag.net" }},
		{"zero rpm", func(c *Config) { c.RateLimit.RequestsPerMinute = 0 }},
		{"negative retries", func(c *Config) { c.RateLimit.MaxRetries = -1 }},
		{"zero timeout", func(c *Config) { c.Download.Timeout = 0 }},
		{"empty output dir", func(c *Config) { c.Output.BaseDirectory = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"base-url":          "https://flag.example",
		"output":            "/flag/out",
		"rate-limit":        10,
		"continue-on-error": true,
		"log-level":         "warn",
	})

	assert.Equal(t, "https://flag.example", cfg.API.BaseURL)
	assert.Equal(t, "/flag/out", cfg.Output.BaseDirectory)
	assert.Equal(t, 10, cfg.RateLimit.RequestsPerMinute)
	assert.True(t, cfg.Download.ContinueOnError)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestFlagPrecedenceOverEnv(t *testing.T) {
	t.Setenv("BARAAGDL_OUTPUT_DIR", "/env/out")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())
	cfg.MergeCommandLineFlags(map[string]interface{}{"output": "/flag/out"})

	assert.Equal(t, "/flag/out", cfg.Output.BaseDirectory)
}
