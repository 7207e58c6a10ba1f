// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry setup, health checks, and graceful shutdown for beacon.
//
// # Overview
//
// Everything here is infrastructure around the dispatcher: the dispatcher itself
// only sees the small Observer hooks that Metrics and OTelMetrics implement.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithClient("segment").WithError(err).Warn("delivery failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	dispatcher := dispatch.New(dispatch.WithObserver(metrics))
//
// Exported series:
//
//	beacon_http_requests_total{method,route,status}
//	beacon_http_request_duration_seconds{method,route}
//	beacon_dispatch_deliveries_total{operation,client,status}
//	beacon_dispatch_duration_seconds{operation}
//	beacon_registered_clients{type}
//	beacon_manifest_reloads_total{status}
//
// # Health Checks
//
// Readiness pings every registered client that implements Ping(ctx):
//
//	checker := observability.NewHealthChecker(dispatcher, version)
//	observability.RegisterHealthRoutes(healthMux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "beacon",
//	}, logger)
//	defer providers.Shutdown(ctx)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/dispatch: Observer hooks
package observability
