package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/counter"
	"github.com/xraph/jobrow/id"
)

// ListCounters returns up to limit raw counter rows.
func (s *Store) ListCounters(ctx context.Context, limit int) ([]*counter.Counter, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, key, value, expire_at FROM jobrow_counters
		ORDER BY id LIMIT $1`,
		limitArg(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("jobrow/postgres: list counters: %w", err)
	}
	defer rows.Close()

	result := make([]*counter.Counter, 0)
	for rows.Next() {
		var (
			c     counter.Counter
			idStr string
		)
		if err := rows.Scan(&idStr, &c.Key, &c.Value, &c.ExpireAt); err != nil {
			return nil, fmt.Errorf("jobrow/postgres: scan counter: %w", err)
		}
		if c.ID, err = parseID(idStr, id.PrefixCounter); err != nil {
			return nil, err
		}
		c.ExpireAt = utc(c.ExpireAt)
		result = append(result, &c)
	}
	return result, rows.Err()
}

// FoldCounters deletes the consumed rows and upserts the folds in one
// transaction. GREATEST ignores NULL, so a missing expiration never wins.
func (s *Store) FoldCounters(ctx context.Context, folds []counter.Fold, consumed []id.CounterID) error {
	ids := make([]string, len(consumed))
	for i, c := range consumed {
		ids[i] = c.String()
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// The delete goes first: a concurrent fold of the same rows blocks on
		// the row locks and then sees fewer rows than it read.
		if len(ids) > 0 {
			tag, err := tx.Exec(ctx, `DELETE FROM jobrow_counters WHERE id = ANY($1)`, ids)
			if err != nil {
				return err
			}
			if tag.RowsAffected() != int64(len(ids)) {
				return jobrow.ErrCountersStale
			}
		}
		for _, f := range folds {
			if _, err := tx.Exec(ctx, `
				INSERT INTO jobrow_aggregated_counters AS a (id, key, value, expire_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (key) DO UPDATE SET
					value = a.value + EXCLUDED.value,
					expire_at = GREATEST(a.expire_at, EXCLUDED.expire_at)`,
				id.NewAggregateID().String(), f.Key, f.Delta, f.ExpireAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("jobrow/postgres: fold counters: %w", err)
	}
	return nil
}

// GetAggregate returns the aggregate row of key.
func (s *Store) GetAggregate(ctx context.Context, key string) (*counter.Aggregate, error) {
	var (
		a     counter.Aggregate
		idStr string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, key, value, expire_at FROM jobrow_aggregated_counters WHERE key = $1`,
		key,
	).Scan(&idStr, &a.Key, &a.Value, &a.ExpireAt)
	if err != nil {
		if isNoRows(err) {
			return nil, jobrow.ErrCounterNotFound
		}
		return nil, fmt.Errorf("jobrow/postgres: get aggregate: %w", err)
	}
	if a.ID, err = parseID(idStr, id.PrefixAggregate); err != nil {
		return nil, err
	}
	a.ExpireAt = utc(a.ExpireAt)
	return &a, nil
}

// CounterValue returns the aggregate total of key plus unfolded rows.
func (s *Store) CounterValue(ctx context.Context, key string) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `
		SELECT (COALESCE((SELECT value FROM jobrow_aggregated_counters WHERE key = $1), 0)
		      + COALESCE((SELECT SUM(value) FROM jobrow_counters WHERE key = $1), 0))::BIGINT`,
		key,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("jobrow/postgres: counter value: %w", err)
	}
	return total, nil
}
