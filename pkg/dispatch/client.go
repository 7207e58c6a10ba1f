package dispatch

import "context"

// ClientType partitions registered clients into the analytics and error views.
// It is fixed per concrete client kind.
type ClientType string

const (
	TypeAnalytics ClientType = "analytics"
	TypeError     ClientType = "error"
)

// Properties is free-form structured payload data. A nil map means the
// caller did not supply any.
type Properties map[string]any

// Client is the capability shared by every registered backend.
type Client interface {
	ClientType() ClientType
	// ClientName is the addressing key for explicit targeting and for
	// replace-on-register. It must not change while registered.
	ClientName() string
	IdentifyUser(ctx context.Context, id string, otherInfo Properties) error
}

// AnalyticsClient receives identify, page view, and custom event calls.
type AnalyticsClient interface {
	Client
	Page(ctx context.Context, page string, properties Properties) error
	SendEvent(ctx context.Context, event string, properties Properties) error
}

// ErrorClient receives identify and error report calls.
//
// errorInfo is never nil; a report sent without details (nil, or a nil
// slice) arrives as []any{nil}. level is LevelUnset when the caller omitted it and
// the client applies its own default.
type ErrorClient interface {
	Client
	TrackError(ctx context.Context, message string, errorInfo []any, level Level) error
}

// Pinger is implemented by clients whose backend can be health checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// validate reports whether c is usable: non-nil and implementing the
// capability interface its ClientType names.
func validate(c Client) bool {
	if c == nil {
		return false
	}
	switch c.ClientType() {
	case TypeAnalytics:
		_, ok := c.(AnalyticsClient)
		return ok
	case TypeError:
		_, ok := c.(ErrorClient)
		return ok
	default:
		return false
	}
}
