package dispatch

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultRedirectDelay is how long a tracked link waits between sending its
// event and navigating.
const DefaultRedirectDelay = 200 * time.Millisecond

// Click is the activation of a tracked link.
type Click interface {
	// PreventDefault suppresses the navigation the activation would
	// otherwise trigger on its own.
	PreventDefault()
	// Href is the link destination.
	Href() string
}

// Navigator performs the deferred navigation.
type Navigator interface {
	Navigate(url string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(url string)

func (f NavigatorFunc) Navigate(url string) { f(url) }

// Navigation is a scheduled navigation.
type Navigation struct {
	URL   string
	timer clockwork.Timer
}

// Stop cancels the navigation. It reports false if the navigation already
// happened or was stopped.
func (n *Navigation) Stop() bool {
	return n.timer.Stop()
}

// LinkClickFunc handles one link activation.
type LinkClickFunc func(ctx context.Context, click Click) (*Navigation, error)

type linkConfig struct {
	delay   time.Duration
	targets []DispatchOption
}

// LinkOption configures LinkClickHandler.
type LinkOption func(*linkConfig)

// WithRedirectDelay overrides DefaultRedirectDelay. Negative delays are
// treated as zero.
func WithRedirectDelay(d time.Duration) LinkOption {
	return func(c *linkConfig) {
		if d < 0 {
			d = 0
		}
		c.delay = d
	}
}

// LinkTo restricts the event to the named clients, like To.
func LinkTo(names ...string) LinkOption {
	return func(c *linkConfig) {
		c.targets = []DispatchOption{To(names...)}
	}
}

// LinkClickHandler returns a reusable handler for tracked links. Each call
// suppresses the default navigation, sends event synchronously and then
// schedules nav.Navigate with the link destination after the redirect delay.
// When SendEvent fails nothing is scheduled and the error is returned.
// Repeated clicks each schedule their own navigation.
func (d *Dispatcher) LinkClickHandler(event string, properties Properties, nav Navigator, opts ...LinkOption) LinkClickFunc {
	cfg := linkConfig{delay: DefaultRedirectDelay}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx context.Context, click Click) (*Navigation, error) {
		click.PreventDefault()
		href := click.Href()

		if err := d.SendEvent(ctx, event, properties, cfg.targets...); err != nil {
			return nil, err
		}

		timer := d.clock.AfterFunc(cfg.delay, func() {
			nav.Navigate(href)
		})
		d.logger.WithFields(map[string]any{
			"event": event,
			"url":   href,
			"delay": cfg.delay.String(),
		}).Debug("navigation scheduled")

		return &Navigation{URL: href, timer: timer}, nil
	}
}
