package memory

import (
	"context"
	"slices"
	"time"

	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/queue"
)

func copyEntry(e *queue.Entry) *queue.Entry {
	cp := *e
	cp.FetchedAt = cloneTime(e.FetchedAt)
	return &cp
}

// NextVisible returns the most recently added claimable row in queues.
func (m *Store) NextVisible(_ context.Context, queues []string, threshold time.Time) (*queue.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *queue.Entry
	for _, e := range m.entries {
		if !slices.Contains(queues, e.Queue) || !e.Visible(threshold) {
			continue
		}
		if best == nil || newer(e, best) {
			best = e
		}
	}
	if best == nil {
		return nil, nil
	}
	return copyEntry(best), nil
}

func newer(a, b *queue.Entry) bool {
	if c := a.AddedAt.Compare(b.AddedAt); c != 0 {
		return c > 0
	}
	return a.ID.Compare(b.ID) > 0
}

// StampEntry sets FetchedAt to at if it currently equals expected.
func (m *Store) StampEntry(_ context.Context, entryID id.EntryID, expected *time.Time, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[entryID.String()]
	if !ok {
		return false, nil
	}
	if expected == nil {
		if e.FetchedAt != nil {
			return false, nil
		}
	} else if !queue.SameStamp(e.FetchedAt, *expected) {
		return false, nil
	}
	stamp := queue.Stamp(at)
	e.FetchedAt = &stamp
	return true, nil
}

// DeleteEntry removes the row if its queue and FetchedAt match.
func (m *Store) DeleteEntry(_ context.Context, entryID id.EntryID, queueName string, fetchedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := entryID.String()
	e, ok := m.entries[key]
	if !ok || e.Queue != queueName || !queue.SameStamp(e.FetchedAt, fetchedAt) {
		return false, nil
	}
	delete(m.entries, key)
	return true, nil
}

// RequeueEntry clears FetchedAt if it equals fetchedAt.
func (m *Store) RequeueEntry(_ context.Context, entryID id.EntryID, fetchedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[entryID.String()]
	if !ok || !queue.SameStamp(e.FetchedAt, fetchedAt) {
		return false, nil
	}
	e.FetchedAt = nil
	return true, nil
}

// ListQueues returns the distinct queue names in use, sorted.
func (m *Store) ListQueues(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0)
	for _, e := range m.entries {
		if !slices.Contains(names, e.Queue) {
			names = append(names, e.Queue)
		}
	}
	slices.Sort(names)
	return names, nil
}

// ListEntries returns rows of a queue, oldest first.
func (m *Store) ListEntries(_ context.Context, queueName string, fetched bool, opts queue.ListOpts) ([]*queue.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*queue.Entry, 0)
	for _, e := range m.entries {
		if e.Queue == queueName && (e.FetchedAt != nil) == fetched {
			result = append(result, copyEntry(e))
		}
	}
	slices.SortFunc(result, func(a, b *queue.Entry) int {
		if c := a.AddedAt.Compare(b.AddedAt); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
	return window(result, opts.Offset, opts.Limit), nil
}

// CountEntries returns the number of waiting and leased rows in a queue.
func (m *Store) CountEntries(_ context.Context, queueName string) (int64, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var enqueued, fetched int64
	for _, e := range m.entries {
		if e.Queue != queueName {
			continue
		}
		if e.FetchedAt == nil {
			enqueued++
		} else {
			fetched++
		}
	}
	return enqueued, fetched, nil
}
