package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/queue"
)

// NextVisible returns the most recently added claimable row in queues. It
// takes no lock; the claim itself is the conditional update in StampEntry.
func (s *Store) NextVisible(ctx context.Context, queues []string, threshold time.Time) (*queue.Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, job_id, queue, added_at, fetched_at
		FROM jobrow_job_queue
		WHERE queue = ANY($1)
		  AND (fetched_at IS NULL OR fetched_at < $2)
		ORDER BY added_at DESC, id DESC
		LIMIT 1`,
		queues, threshold.UTC(),
	)
	e, err := scanEntry(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("jobrow/postgres: next visible entry: %w", err)
	}
	return e, nil
}

// StampEntry sets fetched_at to at if it currently equals expected.
func (s *Store) StampEntry(ctx context.Context, entryID id.EntryID, expected *time.Time, at time.Time) (bool, error) {
	var want *time.Time
	if expected != nil {
		w := queue.Stamp(*expected)
		want = &w
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobrow_job_queue SET fetched_at = $3
		WHERE id = $1 AND fetched_at IS NOT DISTINCT FROM $2`,
		entryID.String(), want, queue.Stamp(at),
	)
	if err != nil {
		return false, fmt.Errorf("jobrow/postgres: stamp entry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteEntry removes the row if its queue and fetched_at match.
func (s *Store) DeleteEntry(ctx context.Context, entryID id.EntryID, queueName string, fetchedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM jobrow_job_queue
		WHERE id = $1 AND queue = $2 AND fetched_at = $3`,
		entryID.String(), queueName, queue.Stamp(fetchedAt),
	)
	if err != nil {
		return false, fmt.Errorf("jobrow/postgres: delete entry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RequeueEntry clears fetched_at if it equals fetchedAt.
func (s *Store) RequeueEntry(ctx context.Context, entryID id.EntryID, fetchedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobrow_job_queue SET fetched_at = NULL
		WHERE id = $1 AND fetched_at = $2`,
		entryID.String(), queue.Stamp(fetchedAt),
	)
	if err != nil {
		return false, fmt.Errorf("jobrow/postgres: requeue entry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListQueues returns the distinct queue names in use, sorted.
func (s *Store) ListQueues(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT queue FROM jobrow_job_queue ORDER BY queue`)
	if err != nil {
		return nil, fmt.Errorf("jobrow/postgres: list queues: %w", err)
	}
	names, err := collectStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("jobrow/postgres: scan queues: %w", err)
	}
	return names, nil
}

// ListEntries returns rows of a queue, oldest first.
func (s *Store) ListEntries(ctx context.Context, queueName string, fetched bool, opts queue.ListOpts) ([]*queue.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, queue, added_at, fetched_at
		FROM jobrow_job_queue
		WHERE queue = $1 AND (fetched_at IS NOT NULL) = $2
		ORDER BY added_at, id
		LIMIT $3 OFFSET $4`,
		queueName, fetched, limitArg(opts.Limit), opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("jobrow/postgres: list entries: %w", err)
	}
	defer rows.Close()

	result := make([]*queue.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("jobrow/postgres: scan entry: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// CountEntries returns the number of waiting and leased rows in a queue.
func (s *Store) CountEntries(ctx context.Context, queueName string) (int64, int64, error) {
	var enqueued, fetched int64
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE fetched_at IS NULL),
			COUNT(*) FILTER (WHERE fetched_at IS NOT NULL)
		FROM jobrow_job_queue WHERE queue = $1`,
		queueName,
	).Scan(&enqueued, &fetched)
	if err != nil {
		return 0, 0, fmt.Errorf("jobrow/postgres: count entries: %w", err)
	}
	return enqueued, fetched, nil
}

func scanEntry(row pgx.Row) (*queue.Entry, error) {
	var (
		e            queue.Entry
		idStr, jobID string
	)
	if err := row.Scan(&idStr, &jobID, &e.Queue, &e.AddedAt, &e.FetchedAt); err != nil {
		return nil, err
	}
	var err error
	if e.ID, err = parseID(idStr, id.PrefixQueueEntry); err != nil {
		return nil, err
	}
	if e.JobID, err = parseID(jobID, id.PrefixJob); err != nil {
		return nil, err
	}
	e.AddedAt = e.AddedAt.UTC()
	e.FetchedAt = utc(e.FetchedAt)
	return &e, nil
}
