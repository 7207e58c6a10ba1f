package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidClient is returned by RegisterClients for a nil client or one
	// whose ClientType does not match the capability it implements.
	ErrInvalidClient = errors.New("invalid client")

	// ErrClosed is returned by RegisterClients after Close.
	ErrClosed = errors.New("dispatcher closed")
)

// Operation names used in errors, spans, and metrics.
const (
	OpIdentifyUser = "identify_user"
	OpPage         = "page"
	OpSendEvent    = "send_event"
	OpTrackError   = "track_error"
)

// ClientError wraps an error returned by a client capability method.
type ClientError struct {
	Op     string
	Client string
	Err    error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%s: client %q: %v", e.Op, e.Client, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}
