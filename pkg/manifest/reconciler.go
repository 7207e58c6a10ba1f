package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/platinummonkey/beacon/pkg/dispatch"
	"github.com/platinummonkey/beacon/pkg/observability"
)

// Registry is the part of the dispatcher the reconciler drives.
type Registry interface {
	RegisterClients(clients ...dispatch.Client) error
	UnregisterClients(names ...string)
	RegisteredAnalyticsClients() []string
	RegisteredErrorClients() []string
}

// Result summarizes one Apply.
type Result struct {
	Added     []string
	Replaced  []string
	Removed   []string
	Unchanged []string
}

// Changed reports whether the registry was touched.
func (r Result) Changed() bool {
	return len(r.Added)+len(r.Replaced)+len(r.Removed) > 0
}

type applied struct {
	fingerprint string
	client      dispatch.Client
}

// Reconciler keeps the registry in line with the latest manifest. It owns
// the clients it builds and closes them once they leave the registry.
type Reconciler struct {
	mu       sync.Mutex
	registry Registry
	builder  ClientBuilder
	logger   *observability.Logger
	current  map[string]applied
}

func NewReconciler(registry Registry, builder ClientBuilder, logger *observability.Logger) *Reconciler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Reconciler{
		registry: registry,
		builder:  builder,
		logger:   logger,
		current:  make(map[string]applied),
	}
}

// Apply builds clients for new and changed specs, registers them in one
// batch, unregisters clients no longer listed, then closes the instances
// that were replaced or removed. A listed client that was unregistered
// behind the reconciler's back is rebuilt and counts as added. Nothing
// changes if validation or any build fails.
func (r *Reconciler) Apply(ctx context.Context, m *Manifest) (Result, error) {
	if err := m.Validate(); err != nil {
		return Result{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		result  Result
		batch   []dispatch.Client
		retired []dispatch.Client
		next    = make(map[string]applied, len(m.Clients))
	)

	registered := make(map[string]bool)
	for _, name := range r.registry.RegisteredAnalyticsClients() {
		registered[name] = true
	}
	for _, name := range r.registry.RegisteredErrorClients() {
		registered[name] = true
	}

	for _, spec := range m.Clients {
		fp := spec.Fingerprint()
		prev, exists := r.current[spec.Name]
		if exists && prev.fingerprint == fp && registered[spec.Name] {
			next[spec.Name] = prev
			result.Unchanged = append(result.Unchanged, spec.Name)
			continue
		}

		client, err := r.builder.Build(ctx, spec)
		if err != nil {
			r.closeAll(batch)
			return Result{}, err
		}
		batch = append(batch, client)
		next[spec.Name] = applied{fingerprint: fp, client: client}

		switch {
		case exists && !registered[spec.Name]:
			retired = append(retired, prev.client)
			result.Added = append(result.Added, spec.Name)
		case exists:
			retired = append(retired, prev.client)
			result.Replaced = append(result.Replaced, spec.Name)
		default:
			result.Added = append(result.Added, spec.Name)
		}
	}

	for name, prev := range r.current {
		if _, keep := next[name]; !keep {
			retired = append(retired, prev.client)
			result.Removed = append(result.Removed, name)
		}
	}
	sort.Strings(result.Removed)

	if len(batch) > 0 {
		if err := r.registry.RegisterClients(batch...); err != nil {
			r.closeAll(batch)
			return Result{}, fmt.Errorf("failed to register clients: %w", err)
		}
	}
	if len(result.Removed) > 0 {
		r.registry.UnregisterClients(result.Removed...)
	}

	r.current = next
	r.closeAll(retired)

	if result.Changed() {
		r.logger.WithFields(map[string]any{
			"added":    result.Added,
			"replaced": result.Replaced,
			"removed":  result.Removed,
		}).Info("client manifest applied")
	}
	return result, nil
}

// Close unregisters and closes every client the reconciler built.
func (r *Reconciler) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.current))
	clients := make([]dispatch.Client, 0, len(r.current))
	for name, a := range r.current {
		names = append(names, name)
		clients = append(clients, a.client)
	}
	r.registry.UnregisterClients(names...)
	r.current = make(map[string]applied)
	return r.closeAll(clients)
}

func (r *Reconciler) closeAll(clients []dispatch.Client) error {
	var errs []error
	for _, c := range clients {
		closer, ok := c.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			r.logger.WithClient(c.ClientName()).WithError(err).Warn("failed to close client")
			errs = append(errs, fmt.Errorf("close %s: %w", c.ClientName(), err))
		}
	}
	return errors.Join(errs...)
}
