package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type call struct {
	client string
	op     string
	arg    string
	props  Properties
	info   []any
	level  Level
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) add(c call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recorder) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

// order returns "client:op" for each recorded call.
func (r *recorder) order() []string {
	var out []string
	for _, c := range r.snapshot() {
		out = append(out, fmt.Sprintf("%s:%s", c.client, c.op))
	}
	return out
}

type fakeAnalytics struct {
	name string
	rec  *recorder
	err  error
	kind ClientType
}

func newAnalytics(name string, rec *recorder) *fakeAnalytics {
	return &fakeAnalytics{name: name, rec: rec, kind: TypeAnalytics}
}

func (f *fakeAnalytics) ClientType() ClientType { return f.kind }
func (f *fakeAnalytics) ClientName() string     { return f.name }

func (f *fakeAnalytics) IdentifyUser(_ context.Context, id string, otherInfo Properties) error {
	f.rec.add(call{client: f.name, op: "identify", arg: id, props: otherInfo})
	return f.err
}

func (f *fakeAnalytics) Page(_ context.Context, page string, properties Properties) error {
	f.rec.add(call{client: f.name, op: "page", arg: page, props: properties})
	return f.err
}

func (f *fakeAnalytics) SendEvent(_ context.Context, event string, properties Properties) error {
	f.rec.add(call{client: f.name, op: "event", arg: event, props: properties})
	return f.err
}

type fakeError struct {
	name string
	rec  *recorder
	err  error
}

func newErrorClient(name string, rec *recorder) *fakeError {
	return &fakeError{name: name, rec: rec}
}

func (f *fakeError) ClientType() ClientType { return TypeError }
func (f *fakeError) ClientName() string     { return f.name }

func (f *fakeError) IdentifyUser(_ context.Context, id string, otherInfo Properties) error {
	f.rec.add(call{client: f.name, op: "identify", arg: id, props: otherInfo})
	return f.err
}

func (f *fakeError) TrackError(_ context.Context, message string, errorInfo []any, level Level) error {
	f.rec.add(call{client: f.name, op: "error", arg: message, info: errorInfo, level: level})
	return f.err
}

// mislabeled claims to be an error client but only implements Client.
type mislabeled struct{ name string }

func (m mislabeled) ClientType() ClientType                                  { return TypeError }
func (m mislabeled) ClientName() string                                      { return m.name }
func (m mislabeled) IdentifyUser(context.Context, string, Properties) error { return nil }

type pingingAnalytics struct {
	*fakeAnalytics
	pingErr error
}

func (p *pingingAnalytics) Ping(context.Context) error { return p.pingErr }

type countingObserver struct {
	mu         sync.Mutex
	deliveries map[string]int
	failures   map[string]int
	analytics  int
	errs       int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{deliveries: map[string]int{}, failures: map[string]int{}}
}

func (o *countingObserver) ObserveDelivery(operation, client string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deliveries[operation+"/"+client]++
	if err != nil {
		o.failures[operation+"/"+client]++
	}
}

func (o *countingObserver) ObserveRegistry(analytics, errors int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.analytics = analytics
	o.errs = errors
}
