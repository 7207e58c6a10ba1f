// Package promcounter provides an analytics client that counts identifies,
// page views and events in Prometheus counters.
package promcounter

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/beacon/pkg/dispatch"
)

const DefaultName = "prometheus"

// Options configures a Client.
type Options struct {
	Name string
	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// Client increments counters labelled with its own name, so several
// instances can share a registry.
type Client struct {
	name       string
	identifies prometheus.Counter
	pageViews  *prometheus.CounterVec
	events     *prometheus.CounterVec
}

var _ dispatch.AnalyticsClient = (*Client)(nil)

// New registers the counters, reusing ones already registered by an earlier
// instance.
func New(opts Options) (*Client, error) {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}

	identifies, err := register(opts.Registerer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_client_identifies_total",
			Help: "Total number of identify calls received",
		},
		[]string{"client"},
	))
	if err != nil {
		return nil, err
	}
	pageViews, err := register(opts.Registerer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_client_page_views_total",
			Help: "Total number of page views received",
		},
		[]string{"client", "page"},
	))
	if err != nil {
		return nil, err
	}
	events, err := register(opts.Registerer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_client_events_total",
			Help: "Total number of events received",
		},
		[]string{"client", "event"},
	))
	if err != nil {
		return nil, err
	}

	return &Client{
		name:       opts.Name,
		identifies: identifies.WithLabelValues(opts.Name),
		pageViews:  pageViews.MustCurryWith(prometheus.Labels{"client": opts.Name}),
		events:     events.MustCurryWith(prometheus.Labels{"client": opts.Name}),
	}, nil
}

func register(reg prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("failed to register counter: %w", err)
	}
	return vec, nil
}

func (c *Client) ClientType() dispatch.ClientType { return dispatch.TypeAnalytics }
func (c *Client) ClientName() string              { return c.name }

func (c *Client) IdentifyUser(context.Context, string, dispatch.Properties) error {
	c.identifies.Inc()
	return nil
}

func (c *Client) Page(_ context.Context, page string, _ dispatch.Properties) error {
	c.pageViews.WithLabelValues(page).Inc()
	return nil
}

func (c *Client) SendEvent(_ context.Context, event string, _ dispatch.Properties) error {
	c.events.WithLabelValues(event).Inc()
	return nil
}
