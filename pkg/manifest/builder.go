package manifest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/beacon/pkg/clients/debug"
	"github.com/platinummonkey/beacon/pkg/clients/otelerror"
	"github.com/platinummonkey/beacon/pkg/clients/promcounter"
	"github.com/platinummonkey/beacon/pkg/clients/redisstream"
	"github.com/platinummonkey/beacon/pkg/clients/s3archive"
	"github.com/platinummonkey/beacon/pkg/clients/sqlstore"
	"github.com/platinummonkey/beacon/pkg/clients/webhook"
	"github.com/platinummonkey/beacon/pkg/dispatch"
	"github.com/platinummonkey/beacon/pkg/observability"
)

// Deps are the shared dependencies handed to every factory. Nil fields fall
// back to each client's own default.
type Deps struct {
	Logger         *observability.Logger
	LogrusLogger   *logrus.Logger
	Registerer     prometheus.Registerer
	TracerProvider trace.TracerProvider
	HTTPClient     *http.Client
}

// Factory builds a client of one kind.
type Factory func(ctx context.Context, spec ClientSpec, deps Deps) (dispatch.Client, error)

// ClientBuilder turns specs into clients.
type ClientBuilder interface {
	Build(ctx context.Context, spec ClientSpec) (dispatch.Client, error)
}

// Builder dispatches on ClientSpec.Kind.
type Builder struct {
	deps      Deps
	factories map[string]Factory
}

// NewBuilder returns a builder knowing every kind in Kinds.
func NewBuilder(deps Deps) *Builder {
	b := &Builder{deps: deps, factories: make(map[string]Factory)}
	b.Register(KindDebugAnalytics, buildDebugAnalytics)
	b.Register(KindDebugError, buildDebugError)
	b.Register(KindWebhook, buildWebhook)
	b.Register(KindSQL, buildSQL)
	b.Register(KindRedis, buildRedis)
	b.Register(KindS3, buildS3)
	b.Register(KindOTel, buildOTel)
	b.Register(KindPrometheus, buildPrometheus)
	return b
}

// Register adds or replaces the factory for kind.
func (b *Builder) Register(kind string, f Factory) {
	b.factories[kind] = f
}

func (b *Builder) Build(ctx context.Context, spec ClientSpec) (dispatch.Client, error) {
	f, ok := b.factories[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, spec.Kind)
	}
	client, err := f(ctx, spec, b.deps)
	if err != nil {
		return nil, fmt.Errorf("failed to build client %q: %w", spec.Name, err)
	}
	return client, nil
}

func buildDebugAnalytics(_ context.Context, spec ClientSpec, deps Deps) (dispatch.Client, error) {
	return debug.NewAnalyticsClient(debug.Options{Name: spec.Name, Logger: deps.LogrusLogger}), nil
}

func buildDebugError(_ context.Context, spec ClientSpec, deps Deps) (dispatch.Client, error) {
	return debug.NewErrorClient(debug.Options{Name: spec.Name, Logger: deps.LogrusLogger}), nil
}

func buildWebhook(_ context.Context, spec ClientSpec, deps Deps) (dispatch.Client, error) {
	return webhook.New(webhook.Options{
		Name:       spec.Name,
		URL:        spec.URL,
		Secret:     spec.Secret,
		Timeout:    spec.Timeout,
		HTTPClient: deps.HTTPClient,
		Logger:     deps.Logger,
		Retry:      webhook.RetryConfig{MaxAttempts: spec.MaxAttempts},
	})
}

func buildSQL(ctx context.Context, spec ClientSpec, _ Deps) (dispatch.Client, error) {
	return sqlstore.Open(ctx, spec.DSN, sqlstore.Options{Name: spec.Name, Driver: spec.Driver})
}

func buildRedis(ctx context.Context, spec ClientSpec, _ Deps) (dispatch.Client, error) {
	return redisstream.New(ctx, redisstream.Options{
		Name:   spec.Name,
		URL:    spec.URL,
		Stream: spec.Stream,
		MaxLen: spec.MaxLen,
	})
}

func buildS3(ctx context.Context, spec ClientSpec, _ Deps) (dispatch.Client, error) {
	return s3archive.New(ctx, s3archive.Options{
		Name:         spec.Name,
		Bucket:       spec.Bucket,
		Prefix:       spec.Prefix,
		Region:       spec.Region,
		Endpoint:     spec.Endpoint,
		UsePathStyle: spec.PathStyle,
		AccessKey:    spec.AccessKey,
		SecretKey:    spec.SecretKey,
	})
}

func buildOTel(_ context.Context, spec ClientSpec, deps Deps) (dispatch.Client, error) {
	return otelerror.New(otelerror.Options{Name: spec.Name, TracerProvider: deps.TracerProvider}), nil
}

func buildPrometheus(_ context.Context, spec ClientSpec, deps Deps) (dispatch.Client, error) {
	return promcounter.New(promcounter.Options{Name: spec.Name, Registerer: deps.Registerer})
}
