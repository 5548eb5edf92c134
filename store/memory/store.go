// Package memory provides a fully in-memory implementation of store.Store.
// It is safe for concurrent access and intended for unit testing,
// development and single-process deployments.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/xraph/jobrow/cluster"
	"github.com/xraph/jobrow/collection"
	"github.com/xraph/jobrow/counter"
	"github.com/xraph/jobrow/expire"
	"github.com/xraph/jobrow/job"
	"github.com/xraph/jobrow/queue"
	"github.com/xraph/jobrow/txn"
)

// Ensure Store implements every subsystem store at compile time.
// We can't import store here (import cycle in tests), so we verify each one.
var (
	_ job.Store        = (*Store)(nil)
	_ queue.Store      = (*Store)(nil)
	_ counter.Store    = (*Store)(nil)
	_ collection.Store = (*Store)(nil)
	_ cluster.Store    = (*Store)(nil)
	_ expire.Store     = (*Store)(nil)
	_ txn.Store        = (*Store)(nil)
)

// Store is the in-memory backend.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	jobs       map[string]*job.Job
	params     map[string]map[string]*job.Parameter // job ID -> name
	states     map[string]*job.State
	jobStates  map[string][]string // job ID -> state IDs, oldest first
	entries    map[string]*queue.Entry
	counters   map[string]*counter.Counter
	aggregates map[string]*counter.Aggregate               // key
	hashes     map[string]map[string]*collection.HashField // key -> field
	lists      map[string][]*collection.ListItem           // key -> items by Seq
	sets       map[string]map[string]*collection.SetMember // key -> value
	servers    map[string]*cluster.Server
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for TTL reads.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.reset()
	return s
}

func (m *Store) reset() {
	m.jobs = make(map[string]*job.Job)
	m.params = make(map[string]map[string]*job.Parameter)
	m.states = make(map[string]*job.State)
	m.jobStates = make(map[string][]string)
	m.entries = make(map[string]*queue.Entry)
	m.counters = make(map[string]*counter.Counter)
	m.aggregates = make(map[string]*counter.Aggregate)
	m.hashes = make(map[string]map[string]*collection.HashField)
	m.lists = make(map[string][]*collection.ListItem)
	m.sets = make(map[string]map[string]*collection.SetMember)
	m.servers = make(map[string]*cluster.Server)
}

// ──────────────────────────────────────────────────
// Lifecycle: Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func expired(at *time.Time, before time.Time) bool {
	return at != nil && at.Before(before)
}

// window applies offset and limit to a sorted slice.
func window[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// earliest returns the smallest non-nil expiration.
func earliest(times ...*time.Time) *time.Time {
	var min *time.Time
	for _, t := range times {
		if t != nil && (min == nil || t.Before(*min)) {
			min = t
		}
	}
	return cloneTime(min)
}

// sortedByExpiry returns the keys of rows with an expiration before the
// cutoff, earliest first.
func sortedByExpiry(rows map[string]*time.Time, before time.Time, limit int) []string {
	type pair struct {
		key string
		at  time.Time
	}
	candidates := make([]pair, 0)
	for k, at := range rows {
		if expired(at, before) {
			candidates = append(candidates, pair{k, *at})
		}
	}
	slices.SortFunc(candidates, func(a, b pair) int {
		if c := a.at.Compare(b.at); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	keys := make([]string, len(candidates))
	for i, p := range candidates {
		keys[i] = p.key
	}
	return keys
}
