package dispatch

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/beacon/pkg/observability"
)

// Observer receives dispatch telemetry. observability.Metrics and
// observability.OTelMetrics implement it.
type Observer interface {
	ObserveDelivery(operation, client string, duration time.Duration, err error)
	ObserveRegistry(analytics, errors int)
}

// Observers fans telemetry out to several observers.
func Observers(observers ...Observer) Observer {
	return multiObserver(observers)
}

type multiObserver []Observer

func (m multiObserver) ObserveDelivery(operation, client string, duration time.Duration, err error) {
	for _, o := range m {
		o.ObserveDelivery(operation, client, duration, err)
	}
}

func (m multiObserver) ObserveRegistry(analytics, errors int) {
	for _, o := range m {
		o.ObserveRegistry(analytics, errors)
	}
}

type nopObserver struct{}

func (nopObserver) ObserveDelivery(string, string, time.Duration, error) {}
func (nopObserver) ObserveRegistry(int, int)                             {}

type config struct {
	initial         []Client
	logger          *observability.Logger
	observer        Observer
	tracerProvider  trace.TracerProvider
	clock           clockwork.Clock
	continueOnError bool
}

// Option configures a Dispatcher.
type Option func(*config)

// WithInitialClients seeds the registry, as if passed to RegisterClients.
func WithInitialClients(clients ...Client) Option {
	return func(c *config) {
		c.initial = append(c.initial, clients...)
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *observability.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithObserver sets the telemetry observer.
func WithObserver(observer Observer) Option {
	return func(c *config) {
		c.observer = observer
	}
}

// WithTracerProvider sets the provider for dispatch spans. The default is
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		c.tracerProvider = tp
	}
}

// WithClock sets the clock used to schedule link navigations.
func WithClock(clock clockwork.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithContinueOnError makes dispatch invoke every target even after one
// fails, returning all failures joined. By default dispatch stops at the
// first failing client.
func WithContinueOnError() Option {
	return func(c *config) {
		c.continueOnError = true
	}
}

// targets is the explicit client list of a single call.
type targets struct {
	explicit bool
	names    []string
}

type callConfig struct {
	targets targets
	level   Level
}

// DispatchOption configures a single dispatch call.
type DispatchOption func(*callConfig)

// To restricts a call to the named clients. Names that are not registered
// are skipped. To() with no names targets nobody.
func To(names ...string) DispatchOption {
	return func(c *callConfig) {
		c.targets = targets{explicit: true, names: names}
	}
}

// WithLevel sets the severity of a TrackError call.
func WithLevel(level Level) DispatchOption {
	return func(c *callConfig) {
		c.level = level
	}
}

func applyCallOptions(opts []DispatchOption) callConfig {
	var c callConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return c
}
