package config

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/platinummonkey/beacon/pkg/observability"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.envValue)

			if got := getEnv(tt.key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{name: "returns true for 'true'", envValue: "true", want: true},
		{name: "returns true for '1'", envValue: "1", want: true},
		{name: "returns false for 'false'", defaultValue: true, envValue: "false", want: false},
		{name: "returns default when not set", defaultValue: true, want: true},
		{name: "returns true for 'TRUE' (case insensitive)", envValue: "TRUE", want: true},
		{name: "anything else is false", defaultValue: true, envValue: "yes", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.envValue)

			if got := getEnvBool("TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvInt tests the getEnvInt helper function
func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     int
	}{
		{name: "parses value", envValue: "42", want: 42},
		{name: "negative value", envValue: "-1", want: -1},
		{name: "invalid falls back", envValue: "lots", want: 7},
		{name: "unset falls back", want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT", tt.envValue)

			if got := getEnvInt("TEST_INT", 7); got != tt.want {
				t.Errorf("getEnvInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.25")
	if got := getEnvFloat("TEST_FLOAT", 1); got != 0.25 {
		t.Errorf("getEnvFloat() = %v, want 0.25", got)
	}
	t.Setenv("TEST_FLOAT", "half")
	if got := getEnvFloat("TEST_FLOAT", 1); got != 1 {
		t.Errorf("getEnvFloat() = %v, want fallback 1", got)
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     time.Duration
	}{
		{name: "parses value", envValue: "250ms", want: 250 * time.Millisecond},
		{name: "invalid falls back", envValue: "soon", want: time.Second},
		{name: "unset falls back", want: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.envValue)

			if got := getEnvDuration("TEST_DURATION", time.Second); got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvList tests the getEnvList helper function
func TestGetEnvList(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     []string
	}{
		{name: "unset", want: nil},
		{name: "single", envValue: "example.com", want: []string{"example.com"}},
		{name: "trims and drops blanks", envValue: " a.com, ,b.com,", want: []string{"a.com", "b.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_LIST", tt.envValue)

			if got := getEnvList("TEST_LIST"); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("getEnvList() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if got := cfg.Server.Addr(); got != "0.0.0.0:8080" {
		t.Errorf("Addr() = %v", got)
	}
	if got := cfg.Server.HealthAddr(); got != "0.0.0.0:9090" {
		t.Errorf("HealthAddr() = %v", got)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.MaxBodyBytes != 1<<20 {
		t.Errorf("MaxBodyBytes = %v", cfg.Server.MaxBodyBytes)
	}
	if cfg.Manifest.Path != "clients.yaml" || !cfg.Manifest.Watch || cfg.Manifest.Resync != "@every 5m" {
		t.Errorf("Manifest = %+v", cfg.Manifest)
	}
	if cfg.Dispatch.ContinueOnError {
		t.Error("ContinueOnError should default to false")
	}
	if cfg.Dispatch.LinkDelay != 200*time.Millisecond {
		t.Errorf("LinkDelay = %v", cfg.Dispatch.LinkDelay)
	}
	if cfg.Dispatch.LinkAllowedHosts != nil {
		t.Errorf("LinkAllowedHosts = %v", cfg.Dispatch.LinkAllowedHosts)
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Observability.MetricsEnabled || cfg.Observability.OTelEnabled {
		t.Errorf("Observability = %+v", cfg.Observability)
	}
	if cfg.Observability.OTelServiceName != "beacon" {
		t.Errorf("OTelServiceName = %v", cfg.Observability.OTelServiceName)
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("BEACON_PORT", "8000")
	t.Setenv("BEACON_HEALTH_PORT", "8001")
	t.Setenv("BEACON_MANIFEST_PATH", "/etc/beacon/clients.yaml")
	t.Setenv("BEACON_MANIFEST_WATCH", "false")
	t.Setenv("BEACON_MANIFEST_RESYNC", "")
	t.Setenv("BEACON_CONTINUE_ON_ERROR", "true")
	t.Setenv("BEACON_LINK_DELAY", "1s")
	t.Setenv("BEACON_LINK_ALLOWED_HOSTS", "example.com,docs.example.com")
	t.Setenv("BEACON_LOG_LEVEL", "debug")
	t.Setenv("BEACON_RATE_LIMIT", "120")
	t.Setenv("BEACON_TRUST_PROXY_HEADERS", "true")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "8000" || cfg.Server.HealthPort != "8001" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Server.RateLimit != 120 || !cfg.Server.TrustProxyHeaders {
		t.Errorf("rate limit = %d, trust proxy = %v", cfg.Server.RateLimit, cfg.Server.TrustProxyHeaders)
	}
	want := ManifestConfig{Path: "/etc/beacon/clients.yaml"}
	if cfg.Manifest != want {
		t.Errorf("Manifest = %+v, want %+v", cfg.Manifest, want)
	}
	if !cfg.Dispatch.ContinueOnError || cfg.Dispatch.LinkDelay != time.Second {
		t.Errorf("Dispatch = %+v", cfg.Dispatch)
	}
	if !reflect.DeepEqual(cfg.Dispatch.LinkAllowedHosts, []string{"example.com", "docs.example.com"}) {
		t.Errorf("LinkAllowedHosts = %v", cfg.Dispatch.LinkAllowedHosts)
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: "8080", HealthPort: "9090", MaxBodyBytes: 1024},
			Manifest: ManifestConfig{Path: "clients.yaml", Resync: "@every 5m"},
			Dispatch: DispatchConfig{LinkDelay: 200 * time.Millisecond},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: "server port"},
		{name: "missing health port", mutate: func(c *Config) { c.Server.HealthPort = "" }, wantErr: "health port"},
		{name: "same ports", mutate: func(c *Config) { c.Server.HealthPort = "8080" }, wantErr: "must be different"},
		{name: "zero body cap", mutate: func(c *Config) { c.Server.MaxBodyBytes = 0 }, wantErr: "max body"},
		{name: "negative rate limit", mutate: func(c *Config) { c.Server.RateLimit = -1 }, wantErr: "rate limit"},
		{name: "rate limited", mutate: func(c *Config) { c.Server.RateLimit, c.Server.RateLimitBurst = 600, 60 }},
		{name: "missing manifest", mutate: func(c *Config) { c.Manifest.Path = "" }, wantErr: "manifest path"},
		{name: "bad resync", mutate: func(c *Config) { c.Manifest.Resync = "every so often" }, wantErr: "resync"},
		{name: "cron resync", mutate: func(c *Config) { c.Manifest.Resync = "*/5 * * * *" }},
		{name: "resync disabled", mutate: func(c *Config) { c.Manifest.Resync = "" }},
		{name: "negative delay", mutate: func(c *Config) { c.Dispatch.LinkDelay = -time.Second }, wantErr: "link delay"},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelServiceName = "beacon"
			},
			wantErr: "endpoint",
		},
		{
			name: "otel without service name",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelEndpoint = "localhost:4317"
			},
			wantErr: "service name",
		},
		{
			name: "otel sample ratio out of range",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelEndpoint = "localhost:4317"
				c.Observability.OTelServiceName = "beacon"
				c.Observability.OTelSampleRatio = 1.5
			},
			wantErr: "sample ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_InvalidFails(t *testing.T) {
	t.Setenv("BEACON_PORT", "9090")

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() expected error for clashing ports")
	}
}
