package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "createathon-client", cfg.Service.Name)
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Zero(t, cfg.API.RateLimitRPS)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "file", cfg.Credentials.Backend)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRate)
	assert.False(t, cfg.Profiling.Enabled)
	assert.Empty(t, cfg.Watch.MetricsAddr)

	require.NoError(t, cfg.Validate())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("CREATEATHON_BASE_URL", "https://createathon.example.com")
	t.Setenv("CREATEATHON_TIMEOUT", "5s")
	t.Setenv("CREATEATHON_RATE_LIMIT_RPS", "2.5")
	t.Setenv("CREATEATHON_RATE_LIMIT_BURST", "4")
	t.Setenv("CREDENTIALS_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "redis.internal:6379")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("TRACING_SAMPLE_RATE", "0.25")

	cfg := Load()

	assert.Equal(t, "https://createathon.example.com", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 2.5, cfg.API.RateLimitRPS)
	assert.Equal(t, 4, cfg.API.RateLimitBurst)
	assert.Equal(t, "redis", cfg.Credentials.Backend)
	assert.Equal(t, "redis.internal:6379", cfg.Credentials.RedisAddr)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, 0.25, cfg.Tracing.SampleRate)

	require.NoError(t, cfg.Validate())
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CREATEATHON_TIMEOUT", "soon")
	t.Setenv("CREATEATHON_RATE_LIMIT_BURST", "many")
	t.Setenv("TRACING_ENABLED", "yep")

	cfg := Load()

	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 1, cfg.API.RateLimitBurst)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty base URL",
			mutate:  func(c *Config) { c.API.BaseURL = "" },
			wantErr: "CREATEATHON_BASE_URL",
		},
		{
			name:    "non-positive timeout",
			mutate:  func(c *Config) { c.API.Timeout = 0 },
			wantErr: "CREATEATHON_TIMEOUT",
		},
		{
			name:    "negative rate limit",
			mutate:  func(c *Config) { c.API.RateLimitRPS = -1 },
			wantErr: "CREATEATHON_RATE_LIMIT_RPS",
		},
		{
			name:    "unknown credentials backend",
			mutate:  func(c *Config) { c.Credentials.Backend = "vault" },
			wantErr: "CREDENTIALS_BACKEND",
		},
		{
			name: "tracing enabled without endpoint",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Endpoint = ""
			},
			wantErr: "TRACING_ENDPOINT",
		},
		{
			name:    "sample rate above one",
			mutate:  func(c *Config) { c.Tracing.SampleRate = 1.5 },
			wantErr: "TRACING_SAMPLE_RATE",
		},
		{
			name: "profiling enabled without endpoint",
			mutate: func(c *Config) {
				c.Profiling.Enabled = true
				c.Profiling.Endpoint = ""
			},
			wantErr: "PROFILING_ENDPOINT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
