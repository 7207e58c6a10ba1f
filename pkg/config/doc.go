// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from BEACON_* environment
// variables with sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	BEACON_HOST="0.0.0.0"
//	BEACON_PORT="8080"
//	BEACON_HEALTH_PORT="9090"
//	BEACON_READ_TIMEOUT="15s"
//	BEACON_WRITE_TIMEOUT="15s"
//	BEACON_MAX_BODY_BYTES="1048576"
//
// Client manifest settings:
//
//	BEACON_MANIFEST_PATH="/etc/beacon/clients.yaml"
//	BEACON_MANIFEST_WATCH="true"
//	BEACON_MANIFEST_RESYNC="@every 5m"  # empty disables
//
// Dispatch settings:
//
//	BEACON_CONTINUE_ON_ERROR="false"
//	BEACON_LINK_DELAY="200ms"
//	BEACON_LINK_ALLOWED_HOSTS="example.com,docs.example.com"
//
// Observability settings:
//
//	BEACON_LOG_LEVEL="info"  # debug, info, warn, error
//	BEACON_METRICS_ENABLED="true"
//	BEACON_OTEL_ENABLED="true"
//	BEACON_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("API: %s\n", cfg.Server.Addr())
//	fmt.Printf("Manifest: %s\n", cfg.Manifest.Path)
//
// # Related Packages
//
//   - pkg/manifest: Uses the manifest settings
//   - pkg/observability: Uses observability configuration
package config
