package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/collection"
)

// ──────────────────────────────────────────────────
// Hashes
// ──────────────────────────────────────────────────

// GetHash returns all fields of a hash.
func (s *Store) GetHash(ctx context.Context, key string) (map[string]string, error) {
	var models []hashModel
	if err := s.db.NewSelect().Model(&models).Where("key = ?", key).Scan(ctx); err != nil {
		return nil, fmt.Errorf("jobrow/bun: get hash: %w", err)
	}
	result := make(map[string]string, len(models))
	for _, m := range models {
		result[m.Field] = m.Value
	}
	return result, nil
}

// GetHashValue returns one field of a hash.
func (s *Store) GetHashValue(ctx context.Context, key, field string) (string, error) {
	m := new(hashModel)
	err := s.db.NewSelect().Model(m).
		Where("key = ?", key).
		Where("field = ?", field).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return "", jobrow.ErrHashFieldNotFound
		}
		return "", fmt.Errorf("jobrow/bun: get hash value: %w", err)
	}
	return m.Value, nil
}

// CountHash returns the number of fields in a hash.
func (s *Store) CountHash(ctx context.Context, key string) (int64, error) {
	return s.count(ctx, (*hashModel)(nil), key)
}

// HashTTL returns the time left before the hash expires.
func (s *Store) HashTTL(ctx context.Context, key string) (time.Duration, error) {
	return s.ttl(ctx, (*hashModel)(nil), key)
}

// ──────────────────────────────────────────────────
// Sets
// ──────────────────────────────────────────────────

// ListSet returns all members of a set by score, then value.
func (s *Store) ListSet(ctx context.Context, key string) ([]string, error) {
	values, err := s.setValues(ctx, key, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("jobrow/bun: list set: %w", err)
	}
	return values, nil
}

// CountSet returns the number of members in a set.
func (s *Store) CountSet(ctx context.Context, key string) (int64, error) {
	return s.count(ctx, (*setModel)(nil), key)
}

// SetRange returns members at positions start through end.
func (s *Store) SetRange(ctx context.Context, key string, start, end int) ([]string, error) {
	offset, limit := collection.Window(start, end)
	if limit == 0 {
		return []string{}, nil
	}
	values, err := s.setValues(ctx, key, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("jobrow/bun: set range: %w", err)
	}
	return values, nil
}

// FirstByLowestScore returns the lowest scored member within [from, to].
func (s *Store) FirstByLowestScore(ctx context.Context, key string, from, to float64) (string, error) {
	var value string
	err := s.db.NewSelect().Model((*setModel)(nil)).
		Column("value").
		Where("key = ?", key).
		Where("score BETWEEN ? AND ?", from, to).
		Order("score ASC", "value ASC").
		Limit(1).
		Scan(ctx, &value)
	if err != nil {
		if isNoRows(err) {
			return "", jobrow.ErrSetEmpty
		}
		return "", fmt.Errorf("jobrow/bun: first by lowest score: %w", err)
	}
	return value, nil
}

// SetTTL returns the time left before the set expires.
func (s *Store) SetTTL(ctx context.Context, key string) (time.Duration, error) {
	return s.ttl(ctx, (*setModel)(nil), key)
}

func (s *Store) setValues(ctx context.Context, key string, limit, offset int) ([]string, error) {
	values := make([]string, 0)
	q := s.db.NewSelect().Model((*setModel)(nil)).
		Column("value").
		Where("key = ?", key).
		Order("score ASC", "value ASC")
	if err := page(q, limit, offset).Scan(ctx, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// ──────────────────────────────────────────────────
// Lists
// ──────────────────────────────────────────────────

// ListItems returns all items of a list in insertion order.
func (s *Store) ListItems(ctx context.Context, key string) ([]string, error) {
	values, err := s.listValues(ctx, key, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("jobrow/bun: list items: %w", err)
	}
	return values, nil
}

// CountList returns the number of items in a list.
func (s *Store) CountList(ctx context.Context, key string) (int64, error) {
	return s.count(ctx, (*listModel)(nil), key)
}

// ListRange returns items at positions start through end.
func (s *Store) ListRange(ctx context.Context, key string, start, end int) ([]string, error) {
	offset, limit := collection.Window(start, end)
	if limit == 0 {
		return []string{}, nil
	}
	values, err := s.listValues(ctx, key, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("jobrow/bun: list range: %w", err)
	}
	return values, nil
}

// ListTTL returns the time left before the list expires.
func (s *Store) ListTTL(ctx context.Context, key string) (time.Duration, error) {
	return s.ttl(ctx, (*listModel)(nil), key)
}

func (s *Store) listValues(ctx context.Context, key string, limit, offset int) ([]string, error) {
	values := make([]string, 0)
	q := s.db.NewSelect().Model((*listModel)(nil)).
		Column("value").
		Where("key = ?", key).
		Order("seq ASC", "id ASC")
	if err := page(q, limit, offset).Scan(ctx, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// ──────────────────────────────────────────────────
// Shared
// ──────────────────────────────────────────────────

func (s *Store) count(ctx context.Context, model any, key string) (int64, error) {
	n, err := s.db.NewSelect().Model(model).Where("key = ?", key).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("jobrow/bun: count: %w", err)
	}
	return int64(n), nil
}

// ttl reads the earliest expiration among the rows of key.
func (s *Store) ttl(ctx context.Context, model any, key string) (time.Duration, error) {
	var earliest time.Time
	err := s.db.NewSelect().Model(model).
		Column("expire_at").
		Where("key = ?", key).
		Where("expire_at IS NOT NULL").
		Order("expire_at ASC").
		Limit(1).
		Scan(ctx, &earliest)
	if err != nil {
		if isNoRows(err) {
			return collection.NoTTL, nil
		}
		return 0, fmt.Errorf("jobrow/bun: ttl: %w", err)
	}
	return collection.TTL(&earliest, time.Now()), nil
}

// collectionModel maps a collection kind to its table model.
func collectionModel(kind collection.Kind) (any, error) {
	switch kind {
	case collection.KindHash:
		return (*hashModel)(nil), nil
	case collection.KindList:
		return (*listModel)(nil), nil
	case collection.KindSet:
		return (*setModel)(nil), nil
	}
	return nil, fmt.Errorf("%w: %q", jobrow.ErrUnknownKind, kind)
}
