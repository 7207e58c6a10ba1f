package observability

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestInitOTel_Disabled(t *testing.T) {
	var buf bytes.Buffer
	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, NewLogger(InfoLevel, &buf))

	require.NoError(t, err)
	assert.Nil(t, providers)
	assert.Contains(t, buf.String(), "OpenTelemetry is disabled")
}

func TestInitOTel_Enabled(t *testing.T) {
	// The collector connection is lazy, so no collector is needed.
	providers, err := InitOTel(context.Background(), OTelConfig{
		Enabled:        true,
		Endpoint:       "localhost:4317",
		ServiceName:    "beacon-test",
		ServiceVersion: "0.0.1",
		Insecure:       true,
		SampleRatio:    0.5,
		ExportInterval: time.Minute,
	}, NopLogger())
	require.NoError(t, err)
	require.NotNil(t, providers)
	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.MeterProvider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Flushing to an absent collector may fail; shutdown must still return.
	_ = providers.Shutdown(ctx)
}

func TestOTelProviders_ShutdownNil(t *testing.T) {
	var providers *OTelProviders
	assert.NoError(t, providers.Shutdown(context.Background()))
	assert.NoError(t, (&OTelProviders{}).Shutdown(context.Background()))
}

func TestOTelProviders_ShutdownLocalProviders(t *testing.T) {
	providers := &OTelProviders{
		TracerProvider: sdktrace.NewTracerProvider(),
		MeterProvider:  sdkmetric.NewMeterProvider(),
	}
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{ratio: 0, want: "AlwaysOnSampler"},
		{ratio: 1, want: "AlwaysOnSampler"},
		{ratio: 2, want: "AlwaysOnSampler"},
		{ratio: 0.25, want: "TraceIDRatioBased{0.25}"},
	}

	for _, tt := range tests {
		assert.Contains(t, sampler(tt.ratio).Description(), tt.want)
		assert.Contains(t, sampler(tt.ratio).Description(), "ParentBased")
	}
}

func TestLogger_WithTraceContext(t *testing.T) {
	t.Run("no span", func(t *testing.T) {
		logger := NopLogger()
		assert.Same(t, logger, logger.WithTraceContext(context.Background()))
	})

	t.Run("non recording span", func(t *testing.T) {
		logger := NopLogger()
		ctx := trace.ContextWithSpanContext(context.Background(), trace.SpanContext{})
		assert.Same(t, logger, logger.WithTraceContext(ctx))
	})

	t.Run("recording span", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(tracetest.NewSpanRecorder()))
		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		var buf bytes.Buffer
		FromContext(ctx, NewLogger(InfoLevel, &buf)).Info("traced")

		entry := decodeEntry(t, &buf)
		assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
		assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
	})
}
