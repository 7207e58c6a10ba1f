package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/beacon/pkg/observability"
)

const tracerName = "github.com/platinummonkey/beacon/pkg/dispatch"

// Dispatcher routes identify, page, event, and error calls to the currently
// registered clients. It is safe for concurrent use.
type Dispatcher struct {
	registry        *registry
	logger          *observability.Logger
	observer        Observer
	tracer          trace.Tracer
	clock           clockwork.Clock
	continueOnError bool
}

// New creates a dispatcher. It fails only if WithInitialClients carries an
// invalid client.
func New(opts ...Option) (*Dispatcher, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = observability.NopLogger()
	}
	if cfg.observer == nil {
		cfg.observer = nopObserver{}
	}
	if cfg.tracerProvider == nil {
		cfg.tracerProvider = otel.GetTracerProvider()
	}
	if cfg.clock == nil {
		cfg.clock = clockwork.NewRealClock()
	}

	reg, err := newRegistry(cfg.initial)
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		registry:        reg,
		logger:          cfg.logger,
		observer:        cfg.observer,
		tracer:          cfg.tracerProvider.Tracer(tracerName),
		clock:           cfg.clock,
		continueOnError: cfg.continueOnError,
	}
	d.observeRegistry()
	return d, nil
}

// RegisterClients inserts or replaces clients by name in one atomic update.
// A replaced client is dropped silently. The batch is rejected as a whole
// with ErrInvalidClient if any entry is nil or mistyped.
func (d *Dispatcher) RegisterClients(clients ...Client) error {
	if err := d.registry.register(clients); err != nil {
		return err
	}
	for _, c := range clients {
		d.logger.WithClient(c.ClientName()).WithField("type", string(c.ClientType())).Debug("client registered")
	}
	d.observeRegistry()
	return nil
}

// UnregisterClients removes the named clients. Unknown names are ignored.
func (d *Dispatcher) UnregisterClients(names ...string) {
	if d.registry.unregister(names) {
		d.logger.WithField("clients", names).Debug("clients unregistered")
		d.observeRegistry()
	}
}

// RegisteredAnalyticsClients returns the names of the registered analytics
// clients in dispatch order.
func (d *Dispatcher) RegisteredAnalyticsClients() []string {
	return append([]string{}, d.registry.load().analyticsNames...)
}

// RegisteredErrorClients returns the names of the registered error clients
// in dispatch order.
func (d *Dispatcher) RegisteredErrorClients() []string {
	return append([]string{}, d.registry.load().errorNames...)
}

// PingClients pings every registered client implementing Pinger.
func (d *Dispatcher) PingClients(ctx context.Context) map[string]error {
	results := make(map[string]error)
	for _, c := range d.registry.load().clients {
		if p, ok := c.(Pinger); ok {
			results[c.ClientName()] = p.Ping(ctx)
		}
	}
	return results
}

// Close empties the registry. Registration fails with ErrClosed afterwards;
// dispatch calls become no-ops. Clients are not closed, their owner does that.
func (d *Dispatcher) Close() error {
	d.registry.close()
	d.observeRegistry()
	return nil
}

// IdentifyUser associates later activity with a user on every targeted
// client, analytics and error alike.
func (d *Dispatcher) IdentifyUser(ctx context.Context, id string, otherInfo Properties, opts ...DispatchOption) error {
	call := applyCallOptions(opts)
	s := d.registry.load()
	pool := selectTargets(s, poolAll, s.clients, call.targets)

	return deliver(ctx, d, OpIdentifyUser, pool, func(ctx context.Context, c Client) error {
		return c.IdentifyUser(ctx, id, otherInfo)
	})
}

// Page records a page view on the targeted analytics clients.
func (d *Dispatcher) Page(ctx context.Context, page string, properties Properties, opts ...DispatchOption) error {
	call := applyCallOptions(opts)
	s := d.registry.load()
	pool := selectTargets(s, poolAnalytics, s.analytics, call.targets)

	return deliver(ctx, d, OpPage, pool, func(ctx context.Context, c AnalyticsClient) error {
		return c.Page(ctx, page, properties)
	})
}

// SendEvent records a named event on the targeted analytics clients.
func (d *Dispatcher) SendEvent(ctx context.Context, event string, properties Properties, opts ...DispatchOption) error {
	call := applyCallOptions(opts)
	s := d.registry.load()
	pool := selectTargets(s, poolAnalytics, s.analytics, call.targets)

	return deliver(ctx, d, OpSendEvent, pool, func(ctx context.Context, c AnalyticsClient) error {
		return c.SendEvent(ctx, event, properties)
	})
}

// TrackError reports an error to the targeted error clients. errorInfo is
// normalized with NormalizeErrorInfo. The level is passed through untouched;
// when omitted each client applies its own default.
func (d *Dispatcher) TrackError(ctx context.Context, message string, errorInfo any, opts ...DispatchOption) error {
	call := applyCallOptions(opts)
	s := d.registry.load()
	pool := selectTargets(s, poolErrors, s.errs, call.targets)
	info := NormalizeErrorInfo(errorInfo)

	return deliver(ctx, d, OpTrackError, pool, func(ctx context.Context, c ErrorClient) error {
		return c.TrackError(ctx, message, info, call.level)
	})
}

// deliver invokes fn on each target in order. By default the first failure
// stops the loop and is returned; with continueOnError every target is
// invoked and the failures are joined. Panics are not recovered.
func deliver[T Client](ctx context.Context, d *Dispatcher, op string, pool []T, fn func(context.Context, T) error) error {
	if len(pool) == 0 {
		return nil
	}

	ctx, span := d.tracer.Start(ctx, "dispatch."+op,
		trace.WithAttributes(
			attribute.String("beacon.operation", op),
			attribute.Int("beacon.targets", len(pool)),
		),
	)
	defer span.End()

	var errs []error
	for _, c := range pool {
		name := c.ClientName()
		start := time.Now()
		err := fn(ctx, c)
		d.observer.ObserveDelivery(op, name, time.Since(start), err)

		if err == nil {
			d.logger.WithClient(name).WithField("operation", op).Debug("delivered")
			continue
		}

		cerr := &ClientError{Op: op, Client: name, Err: err}
		d.logger.WithClient(name).WithField("operation", op).WithError(err).Warn("client failed")
		span.RecordError(cerr)
		if !d.continueOnError {
			span.SetStatus(codes.Error, cerr.Error())
			return cerr
		}
		errs = append(errs, cerr)
	}

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		span.SetStatus(codes.Error, joined.Error())
		return joined
	}
	return nil
}

func (d *Dispatcher) observeRegistry() {
	s := d.registry.load()
	d.observer.ObserveRegistry(len(s.analytics), len(s.errs))
}
