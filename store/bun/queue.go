package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/queue"
)

// NextVisible returns the most recently added claimable row in queues.
// The caller claims it with StampEntry; a lost race shows up there.
func (s *Store) NextVisible(ctx context.Context, queues []string, threshold time.Time) (*queue.Entry, error) {
	if len(queues) == 0 {
		return nil, nil
	}
	m := new(entryModel)
	err := s.db.NewSelect().Model(m).
		Where("queue IN (?)", bun.In(queues)).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("fetched_at IS NULL").WhereOr("fetched_at < ?", threshold.UTC())
		}).
		Order("added_at DESC", "id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("jobrow/bun: next visible entry: %w", err)
	}
	return fromEntryModel(m)
}

// StampEntry sets fetched_at to at if it currently equals expected.
func (s *Store) StampEntry(ctx context.Context, entryID id.EntryID, expected *time.Time, at time.Time) (bool, error) {
	q := s.db.NewUpdate().Model((*entryModel)(nil)).
		Set("fetched_at = ?", queue.Stamp(at)).
		Where("id = ?", entryID.String())
	if expected == nil {
		q = q.Where("fetched_at IS NULL")
	} else {
		q = q.Where("fetched_at = ?", queue.Stamp(*expected))
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("jobrow/bun: stamp entry: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return false, fmt.Errorf("jobrow/bun: stamp entry: %w", err)
	}
	return n == 1, nil
}

// DeleteEntry removes the row if its queue and fetched_at match.
func (s *Store) DeleteEntry(ctx context.Context, entryID id.EntryID, queueName string, fetchedAt time.Time) (bool, error) {
	res, err := s.db.NewDelete().Model((*entryModel)(nil)).
		Where("id = ?", entryID.String()).
		Where("queue = ?", queueName).
		Where("fetched_at = ?", queue.Stamp(fetchedAt)).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("jobrow/bun: delete entry: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return false, fmt.Errorf("jobrow/bun: delete entry: %w", err)
	}
	return n == 1, nil
}

// RequeueEntry clears fetched_at if it equals fetchedAt.
func (s *Store) RequeueEntry(ctx context.Context, entryID id.EntryID, fetchedAt time.Time) (bool, error) {
	res, err := s.db.NewUpdate().Model((*entryModel)(nil)).
		Set("fetched_at = NULL").
		Where("id = ?", entryID.String()).
		Where("fetched_at = ?", queue.Stamp(fetchedAt)).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("jobrow/bun: requeue entry: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return false, fmt.Errorf("jobrow/bun: requeue entry: %w", err)
	}
	return n == 1, nil
}

// ListQueues returns the distinct queue names in use, sorted.
func (s *Store) ListQueues(ctx context.Context) ([]string, error) {
	names := make([]string, 0)
	err := s.db.NewSelect().Model((*entryModel)(nil)).
		Distinct().
		Column("queue").
		Order("queue ASC").
		Scan(ctx, &names)
	if err != nil {
		return nil, fmt.Errorf("jobrow/bun: list queues: %w", err)
	}
	return names, nil
}

// ListEntries returns rows of a queue, oldest first.
func (s *Store) ListEntries(ctx context.Context, queueName string, fetched bool, opts queue.ListOpts) ([]*queue.Entry, error) {
	var models []entryModel
	q := s.db.NewSelect().Model(&models).
		Where("queue = ?", queueName).
		Order("added_at ASC", "id ASC")
	if fetched {
		q = q.Where("fetched_at IS NOT NULL")
	} else {
		q = q.Where("fetched_at IS NULL")
	}
	if err := page(q, opts.Limit, opts.Offset).Scan(ctx); err != nil {
		return nil, fmt.Errorf("jobrow/bun: list entries: %w", err)
	}

	result := make([]*queue.Entry, 0, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

// CountEntries returns the number of waiting and leased rows in a queue.
func (s *Store) CountEntries(ctx context.Context, queueName string) (int64, int64, error) {
	var enqueued, fetched int64
	err := s.db.NewSelect().Model((*entryModel)(nil)).
		ColumnExpr("COALESCE(SUM(CASE WHEN fetched_at IS NULL THEN 1 ELSE 0 END), 0)").
		ColumnExpr("COALESCE(SUM(CASE WHEN fetched_at IS NOT NULL THEN 1 ELSE 0 END), 0)").
		Where("queue = ?", queueName).
		Scan(ctx, &enqueued, &fetched)
	if err != nil {
		return 0, 0, fmt.Errorf("jobrow/bun: count entries: %w", err)
	}
	return enqueued, fetched, nil
}
