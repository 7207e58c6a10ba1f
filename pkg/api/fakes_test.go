package api

import (
	"context"
	"sync"

	"github.com/platinummonkey/beacon/pkg/dispatch"
)

type delivery struct {
	client string
	op     string
	name   string
	props  dispatch.Properties
	info   []any
	level  dispatch.Level
}

type journal struct {
	mu   sync.Mutex
	list []delivery
}

func (j *journal) add(d delivery) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.list = append(j.list, d)
}

func (j *journal) all() []delivery {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]delivery(nil), j.list...)
}

type analyticsStub struct {
	name string
	j    *journal
	err  error
}

func (c *analyticsStub) ClientType() dispatch.ClientType { return dispatch.TypeAnalytics }
func (c *analyticsStub) ClientName() string              { return c.name }

func (c *analyticsStub) IdentifyUser(_ context.Context, id string, info dispatch.Properties) error {
	c.j.add(delivery{client: c.name, op: "identify", name: id, props: info})
	return c.err
}

func (c *analyticsStub) Page(_ context.Context, page string, props dispatch.Properties) error {
	c.j.add(delivery{client: c.name, op: "page", name: page, props: props})
	return c.err
}

func (c *analyticsStub) SendEvent(_ context.Context, event string, props dispatch.Properties) error {
	c.j.add(delivery{client: c.name, op: "event", name: event, props: props})
	return c.err
}

type errorStub struct {
	name string
	j    *journal
	err  error
}

func (c *errorStub) ClientType() dispatch.ClientType { return dispatch.TypeError }
func (c *errorStub) ClientName() string              { return c.name }

func (c *errorStub) IdentifyUser(_ context.Context, id string, info dispatch.Properties) error {
	c.j.add(delivery{client: c.name, op: "identify", name: id, props: info})
	return c.err
}

func (c *errorStub) TrackError(_ context.Context, message string, info []any, level dispatch.Level) error {
	c.j.add(delivery{client: c.name, op: "error", name: message, info: info, level: level})
	return c.err
}
