package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/collection"
)

// ──────────────────────────────────────────────────
// Hashes
// ──────────────────────────────────────────────────

// GetHash returns all fields of a hash.
func (m *Store) GetHash(_ context.Context, key string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fields := m.hashes[key]
	result := make(map[string]string, len(fields))
	for name, f := range fields {
		result[name] = f.Value
	}
	return result, nil
}

// GetHashValue returns one field of a hash.
func (m *Store) GetHashValue(_ context.Context, key, field string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.hashes[key][field]
	if !ok {
		return "", jobrow.ErrHashFieldNotFound
	}
	return f.Value, nil
}

// CountHash returns the number of fields in a hash.
func (m *Store) CountHash(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.hashes[key])), nil
}

// HashTTL returns the time left before the hash expires.
func (m *Store) HashTTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var min *time.Time
	for _, f := range m.hashes[key] {
		min = earliest(min, f.ExpireAt)
	}
	return collection.TTL(min, m.now()), nil
}

// ──────────────────────────────────────────────────
// Sets
// ──────────────────────────────────────────────────

// sortedSetLocked returns the members of key by score, then value.
func (m *Store) sortedSetLocked(key string) []*collection.SetMember {
	members := make([]*collection.SetMember, 0, len(m.sets[key]))
	for _, sm := range m.sets[key] {
		members = append(members, sm)
	}
	slices.SortFunc(members, func(a, b *collection.SetMember) int {
		if c := cmp.Compare(a.Score, b.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	return members
}

func setValues(members []*collection.SetMember) []string {
	values := make([]string, len(members))
	for i, sm := range members {
		values[i] = sm.Value
	}
	return values
}

// ListSet returns all members of a set.
func (m *Store) ListSet(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return setValues(m.sortedSetLocked(key)), nil
}

// CountSet returns the number of members in a set.
func (m *Store) CountSet(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.sets[key])), nil
}

// SetRange returns members at positions start through end.
func (m *Store) SetRange(_ context.Context, key string, start, end int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	offset, limit := collection.Window(start, end)
	if limit == 0 {
		return []string{}, nil
	}
	return setValues(window(m.sortedSetLocked(key), offset, limit)), nil
}

// FirstByLowestScore returns the lowest scored member within [from, to].
func (m *Store) FirstByLowestScore(_ context.Context, key string, from, to float64) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sm := range m.sortedSetLocked(key) {
		if sm.Score >= from && sm.Score <= to {
			return sm.Value, nil
		}
	}
	return "", jobrow.ErrSetEmpty
}

// SetTTL returns the time left before the set expires.
func (m *Store) SetTTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var min *time.Time
	for _, sm := range m.sets[key] {
		min = earliest(min, sm.ExpireAt)
	}
	return collection.TTL(min, m.now()), nil
}

// ──────────────────────────────────────────────────
// Lists
// ──────────────────────────────────────────────────

func listValues(items []*collection.ListItem) []string {
	values := make([]string, len(items))
	for i, it := range items {
		values[i] = it.Value
	}
	return values
}

// ListItems returns all items of a list in insertion order.
func (m *Store) ListItems(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return listValues(m.lists[key]), nil
}

// CountList returns the number of items in a list.
func (m *Store) CountList(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.lists[key])), nil
}

// ListRange returns items at positions start through end.
func (m *Store) ListRange(_ context.Context, key string, start, end int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	offset, limit := collection.Window(start, end)
	if limit == 0 {
		return []string{}, nil
	}
	return listValues(window(m.lists[key], offset, limit)), nil
}

// ListTTL returns the time left before the list expires.
func (m *Store) ListTTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var min *time.Time
	for _, it := range m.lists[key] {
		min = earliest(min, it.ExpireAt)
	}
	return collection.TTL(min, m.now()), nil
}
