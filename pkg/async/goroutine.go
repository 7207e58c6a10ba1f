package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/platinummonkey/beacon/pkg/observability"
)

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// Use this instead of bare `go func()` to prevent goroutine leaks and crashes.
//
// Example:
//
//	SafeGo(ctx, logger, 5*time.Second, "webhook delivery", func(ctx context.Context) error {
//	    return send(ctx, body)
//	})
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go run(parentCtx, logger, timeout, taskName, fn)
}

func run(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	ctx, cancel := context.WithTimeout(parentCtx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(map[string]any{
				"task":  taskName,
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}).Error("panic in background task")
		}
	}()

	if err := fn(ctx); err != nil {
		// Logged only; the caller already moved on.
		logger.WithField("task", taskName).WithError(err).Warn("background task failed")
	}
}

// Tasks tracks SafeGo goroutines so an owner can wait for them on shutdown.
// The zero value is ready to use.
type Tasks struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// Go runs fn like SafeGo. It reports false, without running fn, once Wait
// has been called.
func (t *Tasks) Go(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		run(parentCtx, logger, timeout, taskName, fn)
	}()
	return true
}

// Wait stops accepting tasks and blocks until the running ones finish or ctx
// is done.
func (t *Tasks) Wait(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background tasks: %w", ctx.Err())
	}
}
