package postgres

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
	rows, err := s.pool.Query(ctx, `SELECT field, value FROM jobrow_hashes WHERE key = $1`, key)
	if err != nil {
		return nil, fmt.Errorf("jobrow/postgres: get hash: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, fmt.Errorf("jobrow/postgres: scan hash: %w", err)
		}
		result[field] = value
	}
	return result, rows.Err()
}

// GetHashValue returns one field of a hash.
func (s *Store) GetHashValue(ctx context.Context, key, field string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `
		SELECT value FROM jobrow_hashes WHERE key = $1 AND field = $2`,
		key, field,
	).Scan(&value)
	if err != nil {
		if isNoRows(err) {
			return "", jobrow.ErrHashFieldNotFound
		}
		return "", fmt.Errorf("jobrow/postgres: get hash value: %w", err)
	}
	return value, nil
}

// CountHash returns the number of fields in a hash.
func (s *Store) CountHash(ctx context.Context, key string) (int64, error) {
	return s.count(ctx, "jobrow_hashes", key)
}

// HashTTL returns the time left before the hash expires.
func (s *Store) HashTTL(ctx context.Context, key string) (time.Duration, error) {
	return s.ttl(ctx, "jobrow_hashes", key)
}

// ──────────────────────────────────────────────────
// Sets
// ──────────────────────────────────────────────────

// ListSet returns all members of a set by score, then value.
func (s *Store) ListSet(ctx context.Context, key string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT value FROM jobrow_sets WHERE key = $1 ORDER BY score, value`,
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("jobrow/postgres: list set: %w", err)
	}
	values, err := collectStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("jobrow/postgres: scan set: %w", err)
	}
	return values, nil
}

// CountSet returns the number of members in a set.
func (s *Store) CountSet(ctx context.Context, key string) (int64, error) {
	return s.count(ctx, "jobrow_sets", key)
}

// SetRange returns members at positions start through end.
func (s *Store) SetRange(ctx context.Context, key string, start, end int) ([]string, error) {
	offset, limit := collection.Window(start, end)
	if limit == 0 {
		return []string{}, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT value FROM jobrow_sets WHERE key = $1
		ORDER BY score, value LIMIT $2 OFFSET $3`,
		key, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("jobrow/postgres: set range: %w", err)
	}
	values, err := collectStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("jobrow/postgres: scan set range: %w", err)
	}
	return values, nil
}

// FirstByLowestScore returns the lowest scored member within [from, to].
func (s *Store) FirstByLowestScore(ctx context.Context, key string, from, to float64) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `
		SELECT value FROM jobrow_sets
		WHERE key = $1 AND score BETWEEN $2 AND $3
		ORDER BY score, value LIMIT 1`,
		key, from, to,
	).Scan(&value)
	if err != nil {
		if isNoRows(err) {
			return "", jobrow.ErrSetEmpty
		}
		return "", fmt.Errorf("jobrow/postgres: first by lowest score: %w", err)
	}
	return value, nil
}

// SetTTL returns the time left before the set expires.
func (s *Store) SetTTL(ctx context.Context, key string) (time.Duration, error) {
	return s.ttl(ctx, "jobrow_sets", key)
}

// ──────────────────────────────────────────────────
// Lists
// ──────────────────────────────────────────────────

// ListItems returns all items of a list in insertion order.
func (s *Store) ListItems(ctx context.Context, key string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT value FROM jobrow_lists WHERE key = $1 ORDER BY seq, id`, key)
	if err != nil {
		return nil, fmt.Errorf("jobrow/postgres: list items: %w", err)
	}
	values, err := collectStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("jobrow/postgres: scan list: %w", err)
	}
	return values, nil
}

// CountList returns the number of items in a list.
func (s *Store) CountList(ctx context.Context, key string) (int64, error) {
	return s.count(ctx, "jobrow_lists", key)
}

// ListRange returns items at positions start through end.
func (s *Store) ListRange(ctx context.Context, key string, start, end int) ([]string, error) {
	offset, limit := collection.Window(start, end)
	if limit == 0 {
		return []string{}, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT value FROM jobrow_lists WHERE key = $1
		ORDER BY seq, id LIMIT $2 OFFSET $3`,
		key, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("jobrow/postgres: list range: %w", err)
	}
	values, err := collectStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("jobrow/postgres: scan list range: %w", err)
	}
	return values, nil
}

// ListTTL returns the time left before the list expires.
func (s *Store) ListTTL(ctx context.Context, key string) (time.Duration, error) {
	return s.ttl(ctx, "jobrow_lists", key)
}

// ──────────────────────────────────────────────────
// Shared
// ──────────────────────────────────────────────────

// count and ttl take a table name from the fixed set above, never from
// caller input.
func (s *Store) count(ctx context.Context, table, key string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table+` WHERE key = $1`, key).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("jobrow/postgres: count %s: %w", table, err)
	}
	return n, nil
}

func (s *Store) ttl(ctx context.Context, table, key string) (time.Duration, error) {
	var earliest *time.Time
	err := s.pool.QueryRow(ctx, `SELECT MIN(expire_at) FROM `+table+` WHERE key = $1`, key).Scan(&earliest)
	if err != nil {
		return 0, fmt.Errorf("jobrow/postgres: ttl %s: %w", table, err)
	}
	return collection.TTL(earliest, time.Now()), nil
}

// collectionTable maps a collection kind to its table.
func collectionTable(kind collection.Kind) (string, error) {
	switch kind {
	case collection.KindHash:
		return "jobrow_hashes", nil
	case collection.KindList:
		return "jobrow_lists", nil
	case collection.KindSet:
		return "jobrow_sets", nil
	}
	return "", fmt.Errorf("%w: %q", jobrow.ErrUnknownKind, kind)
}
