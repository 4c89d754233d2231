// Package config loads client configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/createathon/client-go/credstore"
)

// ServiceConfig identifies this client in logs, traces and profiles.
type ServiceConfig struct {
	Name    string
	Version string
	Env     string
}

// APIConfig points the pipeline at the server.
type APIConfig struct {
	BaseURL        string
	Timeout        time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

// LoggingConfig controls zerolog.
type LoggingConfig struct {
	Level string
}

// CredentialsConfig selects the credential store backend.
type CredentialsConfig struct {
	// Backend is "file" (default) or "redis".
	Backend string
	// File is the JSON file path for the file backend; empty means the
	// default user config location.
	File string
	// Redis settings for the redis backend.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

// TracingConfig controls OTLP trace export.
type TracingConfig struct {
	Enabled    bool
	Endpoint   string
	SampleRate float64
	Insecure   bool
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled  bool
	Endpoint string
}

// WatchConfig tunes the long-running watch mode.
type WatchConfig struct {
	// MetricsAddr is the listen address for the /metrics and /health
	// endpoints; empty disables the ops server.
	MetricsAddr     string
	ShutdownTimeout time.Duration
}

// Config is the full client configuration.
type Config struct {
	Service     ServiceConfig
	API         APIConfig
	Logging     LoggingConfig
	Credentials CredentialsConfig
	Tracing     TracingConfig
	Profiling   ProfilingConfig
	Watch       WatchConfig
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in when present; real environment
// variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Service: ServiceConfig{
			Name:    getEnv("SERVICE_NAME", "createathon-client"),
			Version: getEnv("SERVICE_VERSION", "dev"),
			Env:     getEnv("SERVICE_ENV", "development"),
		},
		API: APIConfig{
			BaseURL:        getEnv("CREATEATHON_BASE_URL", "http://localhost:8000"),
			Timeout:        getEnvDuration("CREATEATHON_TIMEOUT", 30*time.Second),
			RateLimitRPS:   getEnvFloat("CREATEATHON_RATE_LIMIT_RPS", 0),
			RateLimitBurst: getEnvInt("CREATEATHON_RATE_LIMIT_BURST", 1),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Credentials: CredentialsConfig{
			Backend:       getEnv("CREDENTIALS_BACKEND", "file"),
			File:          getEnv("CREDENTIALS_FILE", credstore.DefaultPath()),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			RedisKey:      getEnv("REDIS_CREDENTIALS_KEY", "createathon:credentials"),
		},
		Tracing: TracingConfig{
			Enabled:    getEnvBool("TRACING_ENABLED", false),
			Endpoint:   getEnv("TRACING_ENDPOINT", "localhost:4318"),
			SampleRate: getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
			Insecure:   getEnvBool("TRACING_INSECURE", true),
		},
		Profiling: ProfilingConfig{
			Enabled:  getEnvBool("PROFILING_ENABLED", false),
			Endpoint: getEnv("PROFILING_ENDPOINT", "http://localhost:4040"),
		},
		Watch: WatchConfig{
			MetricsAddr:     getEnv("METRICS_ADDR", ""),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
	}
}

// Validate rejects configurations the client cannot run with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("CREATEATHON_BASE_URL must not be empty")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("CREATEATHON_TIMEOUT must be positive, got %s", c.API.Timeout)
	}
	if c.API.RateLimitRPS < 0 {
		return fmt.Errorf("CREATEATHON_RATE_LIMIT_RPS must not be negative, got %g", c.API.RateLimitRPS)
	}
	switch c.Credentials.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("CREDENTIALS_BACKEND must be \"file\" or \"redis\", got %q", c.Credentials.Backend)
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("TRACING_ENDPOINT must not be empty when tracing is enabled")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATE must be within [0, 1], got %g", c.Tracing.SampleRate)
	}
	if c.Profiling.Enabled && c.Profiling.Endpoint == "" {
		return fmt.Errorf("PROFILING_ENDPOINT must not be empty when profiling is enabled")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
