package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics mirrors the dispatch Prometheus metrics as OpenTelemetry instruments
type OTelMetrics struct {
	deliveries metric.Int64Counter
	duration   metric.Float64Histogram
	registered metric.Int64Gauge
}

// NewOTelMetrics creates the dispatch instruments on the given meter
func NewOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	m.deliveries, err = meter.Int64Counter(
		"beacon.dispatch.deliveries",
		metric.WithDescription("Client invocations made by the dispatcher"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create deliveries counter: %w", err)
	}

	m.duration, err = meter.Float64Histogram(
		"beacon.dispatch.duration",
		metric.WithDescription("Client invocation duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	m.registered, err = meter.Int64Gauge(
		"beacon.registry.clients",
		metric.WithDescription("Registered clients by type"),
		metric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry gauge: %w", err)
	}

	return m, nil
}

// ObserveDelivery records one client invocation
func (m *OTelMetrics) ObserveDelivery(operation, client string, duration time.Duration, err error) {
	ctx := context.Background()
	status := "success"
	if err != nil {
		status = "error"
	}
	m.deliveries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("client", client),
		attribute.String("status", status),
	))
	m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// ObserveRegistry records the registered client counts
func (m *OTelMetrics) ObserveRegistry(analytics, errors int) {
	ctx := context.Background()
	m.registered.Record(ctx, int64(analytics), metric.WithAttributes(attribute.String("type", "analytics")))
	m.registered.Record(ctx, int64(errors), metric.WithAttributes(attribute.String("type", "error")))
}
