package dispatch

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// selectionCacheSize bounds the memoized explicit-target selections kept per
// snapshot. Call sites tend to reuse a handful of client lists.
const selectionCacheSize = 64

// snapshot is an immutable view of the registered clients. A new snapshot
// replaces the old one on every mutation; dispatch calls load one snapshot
// and use it for the whole call.
type snapshot struct {
	clients   []Client
	analytics []AnalyticsClient
	errs      []ErrorClient

	analyticsNames []string
	errorNames     []string

	// selections memoizes explicit-list filtering. It only ever holds results
	// computed from this snapshot, so it needs no invalidation.
	selections *lru.Cache[string, any]
}

func newSnapshot(clients []Client) *snapshot {
	s := &snapshot{clients: clients}
	for _, c := range clients {
		switch c.ClientType() {
		case TypeAnalytics:
			s.analytics = append(s.analytics, c.(AnalyticsClient))
			s.analyticsNames = append(s.analyticsNames, c.ClientName())
		case TypeError:
			s.errs = append(s.errs, c.(ErrorClient))
			s.errorNames = append(s.errorNames, c.ClientName())
		}
	}
	// lru.New only fails for a non-positive size.
	s.selections, _ = lru.New[string, any](selectionCacheSize)
	return s
}

// registry owns the registered set. Writers are serialized by mu and publish
// a fresh snapshot; readers never lock.
type registry struct {
	mu      sync.Mutex
	current atomic.Pointer[snapshot]
	closed  bool
}

func newRegistry(initial []Client) (*registry, error) {
	r := &registry{}
	r.current.Store(newSnapshot(nil))
	if len(initial) > 0 {
		if err := r.register(initial); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *registry) load() *snapshot {
	return r.current.Load()
}

// register inserts or replaces clients by name. Removals are computed against
// the pre-batch set, then the batch is appended in order; a name repeated in
// the batch keeps its last occurrence.
func (r *registry) register(batch []Client) error {
	for i, c := range batch {
		if !validate(c) {
			return fmt.Errorf("%w: batch index %d", ErrInvalidClient, i)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	lastIndex := make(map[string]int, len(batch))
	for i, c := range batch {
		lastIndex[c.ClientName()] = i
	}

	prev := r.load().clients
	next := make([]Client, 0, len(prev)+len(batch))
	for _, c := range prev {
		if _, replaced := lastIndex[c.ClientName()]; !replaced {
			next = append(next, c)
		}
	}
	for i, c := range batch {
		if lastIndex[c.ClientName()] == i {
			next = append(next, c)
		}
	}

	r.current.Store(newSnapshot(next))
	return nil
}

// unregister drops every client whose name is listed. It reports whether
// the set changed.
func (r *registry) unregister(names []string) bool {
	if len(names) == 0 {
		return false
	}
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.load().clients
	next := make([]Client, 0, len(prev))
	for _, c := range prev {
		if _, ok := drop[c.ClientName()]; !ok {
			next = append(next, c)
		}
	}
	if len(next) == len(prev) {
		return false
	}

	r.current.Store(newSnapshot(next))
	return true
}

// close empties the registry and rejects further registration.
func (r *registry) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.current.Store(newSnapshot(nil))
}

type poolKind string

const (
	poolAll       poolKind = "all"
	poolAnalytics poolKind = "analytics"
	poolErrors    poolKind = "error"
)

// selectTargets applies the filtering rule shared by every dispatch operation:
// without an explicit list the whole pool is targeted, otherwise the pool is
// intersected with the names, keeping the pool's order.
func selectTargets[T Client](s *snapshot, kind poolKind, pool []T, t targets) []T {
	if !t.explicit {
		return pool
	}
	if len(t.names) == 0 || len(pool) == 0 {
		return nil
	}

	key := selectionKey(kind, t.names)
	if cached, ok := s.selections.Get(key); ok {
		return cached.([]T)
	}

	want := make(map[string]struct{}, len(t.names))
	for _, n := range t.names {
		want[n] = struct{}{}
	}
	var out []T
	for _, c := range pool {
		if _, ok := want[c.ClientName()]; ok {
			out = append(out, c)
		}
	}

	s.selections.Add(key, out)
	return out
}

// selectionKey is order-insensitive because the result follows pool order.
func selectionKey(kind poolKind, names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return string(kind) + "\x00" + strings.Join(sorted, "\x00")
}
