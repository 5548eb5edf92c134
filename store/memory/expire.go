package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/collection"
	"github.com/xraph/jobrow/expire"
)

// PurgeExpired deletes up to limit expired rows of kind.
func (m *Store) PurgeExpired(_ context.Context, kind expire.Kind, before time.Time, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch kind {
	case expire.KindAggregatedCounter:
		rows := make(map[string]*time.Time, len(m.aggregates))
		for k, a := range m.aggregates {
			rows[k] = a.ExpireAt
		}
		keys := sortedByExpiry(rows, before, limit)
		for _, k := range keys {
			delete(m.aggregates, k)
		}
		return len(keys), nil

	case expire.KindJob:
		rows := make(map[string]*time.Time, len(m.jobs))
		for k, j := range m.jobs {
			rows[k] = j.ExpireAt
		}
		keys := sortedByExpiry(rows, before, limit)
		for _, k := range keys {
			m.deleteJobLocked(k)
		}
		return len(keys), nil

	case expire.KindHash:
		rows := make(map[string]*time.Time)
		for key, fields := range m.hashes {
			for name, f := range fields {
				rows[key+"\x00"+name] = f.ExpireAt
			}
		}
		keys := sortedByExpiry(rows, before, limit)
		for _, k := range keys {
			key, name := splitRowKey(k)
			delete(m.hashes[key], name)
			if len(m.hashes[key]) == 0 {
				delete(m.hashes, key)
			}
		}
		return len(keys), nil

	case expire.KindSet:
		rows := make(map[string]*time.Time)
		for key, members := range m.sets {
			for value, sm := range members {
				rows[key+"\x00"+value] = sm.ExpireAt
			}
		}
		keys := sortedByExpiry(rows, before, limit)
		for _, k := range keys {
			key, value := splitRowKey(k)
			delete(m.sets[key], value)
			if len(m.sets[key]) == 0 {
				delete(m.sets, key)
			}
		}
		return len(keys), nil

	case expire.KindList:
		rows := make(map[string]*time.Time)
		for key, items := range m.lists {
			for _, it := range items {
				rows[key+"\x00"+it.ID.String()] = it.ExpireAt
			}
		}
		keys := sortedByExpiry(rows, before, limit)
		for _, k := range keys {
			key, itemID := splitRowKey(k)
			m.lists[key] = slices.DeleteFunc(m.lists[key], func(it *collection.ListItem) bool {
				return it.ID.String() == itemID
			})
			if len(m.lists[key]) == 0 {
				delete(m.lists, key)
			}
		}
		return len(keys), nil
	}
	return 0, fmt.Errorf("%w: %q", jobrow.ErrUnknownKind, kind)
}

func splitRowKey(k string) (string, string) {
	key, rest, _ := strings.Cut(k, "\x00")
	return key, rest
}
