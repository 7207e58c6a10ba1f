package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

// ShutdownManager stops HTTP servers and runs cleanup hooks once the process
// is asked to stop. Hooks run after the servers, in reverse registration
// order, so later components are torn down before the ones they depend on.
type ShutdownManager struct {
	logger          *Logger
	servers         []*http.Server
	shutdownFuncs   []ShutdownFunc
	shutdownTimeout time.Duration
	mu              sync.Mutex
	once            sync.Once
	err             error
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(logger *Logger, timeout time.Duration, servers ...*http.Server) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &ShutdownManager{
		logger:          logger,
		servers:         servers,
		shutdownTimeout: timeout,
	}
}

// RegisterShutdownFunc registers a function to call during shutdown
func (sm *ShutdownManager) RegisterShutdownFunc(fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.shutdownFuncs = append(sm.shutdownFuncs, fn)
}

// WaitForShutdown blocks until ctx is done (typically a signal context) and
// then performs the shutdown.
func (sm *ShutdownManager) WaitForShutdown(ctx context.Context) error {
	<-ctx.Done()
	sm.logger.Info("Shutdown requested, starting graceful shutdown")
	return sm.Shutdown()
}

// Shutdown stops the servers and runs the registered hooks. Only the first
// call does any work; later calls return the same result.
func (sm *ShutdownManager) Shutdown() error {
	sm.once.Do(func() {
		sm.err = sm.shutdown()
	})
	return sm.err
}

func (sm *ShutdownManager) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), sm.shutdownTimeout)
	defer cancel()

	var errs []error

	for _, server := range sm.servers {
		sm.logger.WithField("addr", server.Addr).Info("Shutting down HTTP server")
		if err := server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("HTTP server shutdown error")
			errs = append(errs, fmt.Errorf("server %s: %w", server.Addr, err))
		}
	}

	sm.mu.Lock()
	funcs := append([]ShutdownFunc(nil), sm.shutdownFuncs...)
	sm.mu.Unlock()

	for i := len(funcs) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			sm.logger.Warn("Shutdown timeout reached, skipping remaining hooks")
			errs = append(errs, fmt.Errorf("shutdown timeout reached"))
			break
		}
		if err := funcs[i](ctx); err != nil {
			sm.logger.WithError(err).Errorf("Shutdown function %d failed", i)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown completed with %d errors: %w", len(errs), errors.Join(errs...))
	}

	sm.logger.Info("Graceful shutdown complete")
	return nil
}
