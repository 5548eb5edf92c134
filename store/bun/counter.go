package bunstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/counter"
	"github.com/xraph/jobrow/id"
)

// upsertAggregate adds a fold to the aggregate row of its key. The CASE
// keeps the later expiration and never lets a missing one win. The target
// table is referenced by name, which both dialects accept without an alias.
const upsertAggregate = `
	INSERT INTO jobrow_aggregated_counters (id, key, value, expire_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (key) DO UPDATE SET
		value = jobrow_aggregated_counters.value + excluded.value,
		expire_at = CASE
			WHEN excluded.expire_at IS NULL THEN jobrow_aggregated_counters.expire_at
			WHEN jobrow_aggregated_counters.expire_at IS NULL THEN excluded.expire_at
			WHEN excluded.expire_at > jobrow_aggregated_counters.expire_at THEN excluded.expire_at
			ELSE jobrow_aggregated_counters.expire_at
		END`

// ListCounters returns up to limit raw counter rows.
func (s *Store) ListCounters(ctx context.Context, limit int) ([]*counter.Counter, error) {
	var models []counterModel
	q := s.db.NewSelect().Model(&models).Order("id ASC")
	if err := page(q, limit, 0).Scan(ctx); err != nil {
		return nil, fmt.Errorf("jobrow/bun: list counters: %w", err)
	}

	result := make([]*counter.Counter, 0, len(models))
	for i := range models {
		c, err := fromCounterModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

// FoldCounters deletes the consumed rows and upserts the folds in one
// transaction. The delete must remove every consumed row.
func (s *Store) FoldCounters(ctx context.Context, folds []counter.Fold, consumed []id.CounterID) error {
	ids := make([]string, len(consumed))
	for i, c := range consumed {
		ids[i] = c.String()
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(ids) > 0 {
			res, err := tx.NewDelete().Model((*counterModel)(nil)).
				Where("id IN (?)", bun.In(ids)).
				Exec(ctx)
			if err != nil {
				return err
			}
			n, err := affected(res)
			if err != nil {
				return err
			}
			if n != int64(len(ids)) {
				return jobrow.ErrCountersStale
			}
		}
		for _, f := range folds {
			if _, err := tx.NewRaw(upsertAggregate,
				id.NewAggregateID().String(), f.Key, f.Delta, utc(f.ExpireAt),
			).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("jobrow/bun: fold counters: %w", err)
	}
	return nil
}

// GetAggregate returns the aggregate row of key.
func (s *Store) GetAggregate(ctx context.Context, key string) (*counter.Aggregate, error) {
	m := new(aggregateModel)
	err := s.db.NewSelect().Model(m).
		Where("key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, jobrow.ErrCounterNotFound
		}
		return nil, fmt.Errorf("jobrow/bun: get aggregate: %w", err)
	}
	return fromAggregateModel(m)
}

// CounterValue returns the aggregate total of key plus unfolded rows.
func (s *Store) CounterValue(ctx context.Context, key string) (int64, error) {
	var total int64
	err := s.db.NewRaw(`
		SELECT CAST(
			COALESCE((SELECT value FROM jobrow_aggregated_counters WHERE key = ?0), 0)
			+ COALESCE((SELECT SUM(value) FROM jobrow_counters WHERE key = ?0), 0)
		AS BIGINT)`,
		key,
	).Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("jobrow/bun: counter value: %w", err)
	}
	return total, nil
}
