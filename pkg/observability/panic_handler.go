package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with its stack trace.
// Call it in a defer at the top of long-running goroutines:
//
//	go func() {
//	    defer observability.RecoverPanic(logger, "manifest watcher")
//	    ...
//	}()
//
// The panic is not re-raised.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", where).
			Error("PANIC recovered")
	}
}
