package memory

import (
	"context"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/counter"
	"github.com/xraph/jobrow/id"
)

// ListCounters returns up to limit raw counter rows.
func (m *Store) ListCounters(_ context.Context, limit int) ([]*counter.Counter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*counter.Counter, 0)
	for _, c := range m.counters {
		if limit > 0 && len(result) >= limit {
			break
		}
		cp := *c
		cp.ExpireAt = cloneTime(c.ExpireAt)
		result = append(result, &cp)
	}
	return result, nil
}

// FoldCounters applies folds and deletes the consumed rows under one lock.
// A batch with any row already folded is rejected whole.
func (m *Store) FoldCounters(_ context.Context, folds []counter.Fold, consumed []id.CounterID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cid := range consumed {
		if _, ok := m.counters[cid.String()]; !ok {
			return jobrow.ErrCountersStale
		}
	}
	for _, f := range folds {
		agg, ok := m.aggregates[f.Key]
		if !ok {
			agg = &counter.Aggregate{ID: id.NewAggregateID(), Key: f.Key}
			m.aggregates[f.Key] = agg
		}
		f.Apply(agg)
		agg.ExpireAt = cloneTime(agg.ExpireAt)
	}
	for _, cid := range consumed {
		delete(m.counters, cid.String())
	}
	return nil
}

// GetAggregate returns the aggregate row of key.
func (m *Store) GetAggregate(_ context.Context, key string) (*counter.Aggregate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agg, ok := m.aggregates[key]
	if !ok {
		return nil, jobrow.ErrCounterNotFound
	}
	cp := *agg
	cp.ExpireAt = cloneTime(agg.ExpireAt)
	return &cp, nil
}

// CounterValue returns the aggregate total of key plus unfolded rows.
func (m *Store) CounterValue(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	if agg, ok := m.aggregates[key]; ok {
		total = agg.Value
	}
	for _, c := range m.counters {
		if c.Key == key {
			total += c.Value
		}
	}
	return total, nil
}
