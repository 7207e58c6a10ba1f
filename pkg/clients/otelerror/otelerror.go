// Package otelerror provides an error client that records error reports as
// OpenTelemetry spans.
package otelerror

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/beacon/pkg/dispatch"
)

const (
	DefaultName = "otel"
	SpanName    = "beacon.error"

	instrumentationName = "github.com/platinummonkey/beacon/pkg/clients/otelerror"
)

// Options configures a Client.
type Options struct {
	Name string
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Client opens one span per report. Every error in the report is recorded
// on it; other values become beacon.error.info events. A report carrying
// no values records an error built from the message.
type Client struct {
	name   string
	tracer trace.Tracer

	mu   sync.RWMutex
	user []attribute.KeyValue
}

var _ dispatch.ErrorClient = (*Client)(nil)

func New(opts Options) *Client {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	return &Client{
		name:   opts.Name,
		tracer: opts.TracerProvider.Tracer(instrumentationName),
	}
}

func (c *Client) ClientType() dispatch.ClientType { return dispatch.TypeError }
func (c *Client) ClientName() string              { return c.name }

// IdentifyUser sets enduser.id, plus one enduser.<key> attribute per trait,
// on later report spans.
func (c *Client) IdentifyUser(_ context.Context, id string, otherInfo dispatch.Properties) error {
	keys := make([]string, 0, len(otherInfo))
	for k := range otherInfo {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := []attribute.KeyValue{attribute.String("enduser.id", id)}
	for _, k := range keys {
		if k == "id" {
			continue
		}
		attrs = append(attrs, attribute.String("enduser."+k, fmt.Sprint(otherInfo[k])))
	}

	c.mu.Lock()
	c.user = attrs
	c.mu.Unlock()
	return nil
}

func (c *Client) TrackError(ctx context.Context, message string, errorInfo []any, level dispatch.Level) error {
	attrs := []attribute.KeyValue{attribute.String("beacon.error.message", message)}
	if severity := convertLevel(level); severity != "" {
		attrs = append(attrs, attribute.String("beacon.error.level", severity))
	}
	c.mu.RLock()
	attrs = append(attrs, c.user...)
	c.mu.RUnlock()

	_, span := c.tracer.Start(ctx, SpanName, trace.WithAttributes(attrs...))
	defer span.End()

	recorded := false
	for _, item := range errorInfo {
		switch v := item.(type) {
		case nil:
			continue
		case error:
			span.RecordError(v)
		default:
			span.AddEvent("beacon.error.info", trace.WithAttributes(
				attribute.String("value", fmt.Sprintf("%v", v)),
			))
		}
		recorded = true
	}
	if !recorded {
		span.RecordError(errors.New(message))
	}

	span.SetStatus(codes.Error, message)
	return nil
}

// convertLevel maps severities onto the names error trackers use.
func convertLevel(level dispatch.Level) string {
	switch level {
	case dispatch.LevelUnset:
		return ""
	case dispatch.LevelWarn:
		return "warning"
	case dispatch.LevelCritical:
		return "fatal"
	default:
		return level.String()
	}
}
