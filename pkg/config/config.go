package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/beacon/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Client manifest configuration
	Manifest ManifestConfig

	// Dispatch behavior
	Dispatch DispatchConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// MaxBodyBytes caps API request bodies.
	MaxBodyBytes int

	// RateLimit is API requests per minute per client IP. Zero disables it.
	RateLimit      int
	RateLimitBurst int

	// TrustProxyHeaders keys the rate limit on X-Forwarded-For/X-Real-IP.
	TrustProxyHeaders bool
}

// Addr is the API listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// HealthAddr is the health and metrics listen address.
func (s ServerConfig) HealthAddr() string {
	return net.JoinHostPort(s.Host, s.HealthPort)
}

// ManifestConfig holds client manifest settings
type ManifestConfig struct {
	Path  string
	Watch bool
	// Resync is a cron schedule; empty disables periodic resync.
	Resync string
}

// DispatchConfig holds dispatcher and tracked link settings
type DispatchConfig struct {
	ContinueOnError bool
	LinkDelay       time.Duration
	// LinkAllowedHosts restricts /v1/links redirects. Empty allows any host.
	LinkAllowedHosts []string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Manifest:      loadManifestConfig(),
		Dispatch:      loadDispatchConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:              getEnv("BEACON_HOST", "0.0.0.0"),
		Port:              getEnv("BEACON_PORT", "8080"),
		ReadTimeout:       getEnvDuration("BEACON_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      getEnvDuration("BEACON_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       getEnvDuration("BEACON_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getEnvDuration("BEACON_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:        getEnv("BEACON_HEALTH_PORT", "9090"),
		MaxBodyBytes:      getEnvInt("BEACON_MAX_BODY_BYTES", 1<<20),
		RateLimit:         getEnvInt("BEACON_RATE_LIMIT", 0),
		RateLimitBurst:    getEnvInt("BEACON_RATE_LIMIT_BURST", 0),
		TrustProxyHeaders: getEnvBool("BEACON_TRUST_PROXY_HEADERS", false),
	}
}

func loadManifestConfig() ManifestConfig {
	cfg := ManifestConfig{
		Path:   getEnv("BEACON_MANIFEST_PATH", "clients.yaml"),
		Watch:  getEnvBool("BEACON_MANIFEST_WATCH", true),
		Resync: "@every 5m",
	}
	// Set but empty disables resync, so getEnv's fallback does not apply.
	if value, ok := os.LookupEnv("BEACON_MANIFEST_RESYNC"); ok {
		cfg.Resync = strings.TrimSpace(value)
	}
	return cfg
}

func loadDispatchConfig() DispatchConfig {
	return DispatchConfig{
		ContinueOnError:  getEnvBool("BEACON_CONTINUE_ON_ERROR", false),
		LinkDelay:        getEnvDuration("BEACON_LINK_DELAY", 200*time.Millisecond),
		LinkAllowedHosts: getEnvList("BEACON_LINK_ALLOWED_HOSTS"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("BEACON_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("BEACON_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("BEACON_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("BEACON_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("BEACON_OTEL_SERVICE_NAME", "beacon"),
		OTelServiceVersion: getEnv("BEACON_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("BEACON_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("BEACON_OTEL_SAMPLE_RATIO", 1),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}
	if c.Server.RateLimit < 0 || c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}

	if c.Manifest.Path == "" {
		return fmt.Errorf("manifest path is required")
	}
	if c.Manifest.Resync != "" {
		if _, err := cron.ParseStandard(c.Manifest.Resync); err != nil {
			return fmt.Errorf("invalid manifest resync schedule %q: %w", c.Manifest.Resync, err)
		}
	}

	if c.Dispatch.LinkDelay < 0 {
		return fmt.Errorf("link delay must not be negative")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blank entries
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
