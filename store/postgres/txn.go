package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/collection"
	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/job"
	"github.com/xraph/jobrow/txn"
)

// CommitTransaction applies ops in order inside one database transaction.
func (s *Store) CommitTransaction(ctx context.Context, ops []txn.Op) error {
	if len(ops) == 0 {
		return nil
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, op := range ops {
			if err := applyOp(ctx, tx, op); err != nil {
				return fmt.Errorf("%s: %w", op.Name(), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("jobrow/postgres: commit transaction: %w", err)
	}
	return nil
}

func applyOp(ctx context.Context, q querier, op txn.Op) error {
	var err error
	switch o := op.(type) {
	case txn.ExpireJob:
		_, err = q.Exec(ctx, `UPDATE jobrow_jobs SET expire_at = $2 WHERE id = $1`, o.JobID.String(), o.ExpireAt.UTC())

	case txn.PersistJob:
		_, err = q.Exec(ctx, `UPDATE jobrow_jobs SET expire_at = NULL WHERE id = $1`, o.JobID.String())

	case txn.SetJobState:
		tag, uerr := q.Exec(ctx, `
			UPDATE jobrow_jobs SET state_id = $2, state_name = $3 WHERE id = $1`,
			o.State.JobID.String(), o.State.ID.String(), o.State.Name,
		)
		if uerr != nil {
			return uerr
		}
		if tag.RowsAffected() == 0 {
			return jobrow.ErrJobNotFound
		}
		err = insertState(ctx, q, o.State)

	case txn.AddJobState:
		var exists bool
		if err := q.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM jobrow_jobs WHERE id = $1)`, o.State.JobID.String(),
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return jobrow.ErrJobNotFound
		}
		err = insertState(ctx, q, o.State)

	case txn.AddToQueue:
		e := o.Entry
		_, err = q.Exec(ctx, `
			INSERT INTO jobrow_job_queue (id, job_id, queue, added_at, fetched_at)
			VALUES ($1, $2, $3, $4, $5)`,
			e.ID.String(), e.JobID.String(), e.Queue, e.AddedAt.UTC(), e.FetchedAt,
		)

	case txn.IncrementCounter:
		c := o.Counter
		_, err = q.Exec(ctx, `
			INSERT INTO jobrow_counters (id, key, value, expire_at) VALUES ($1, $2, $3, $4)`,
			c.ID.String(), c.Key, c.Value, c.ExpireAt,
		)

	case txn.AddToSet:
		m := o.Member
		_, err = q.Exec(ctx, `
			INSERT INTO jobrow_sets (id, key, value, score, expire_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (key, value) DO UPDATE SET score = EXCLUDED.score`,
			m.ID.String(), m.Key, m.Value, m.Score, m.ExpireAt,
		)

	case txn.RemoveFromSet:
		_, err = q.Exec(ctx, `DELETE FROM jobrow_sets WHERE key = $1 AND value = $2`, o.Key, o.Value)

	case txn.InsertToList:
		it := o.Item
		_, err = q.Exec(ctx, `
			INSERT INTO jobrow_lists (id, key, seq, value, expire_at) VALUES ($1, $2, $3, $4, $5)`,
			it.ID.String(), it.Key, it.Seq, it.Value, it.ExpireAt,
		)

	case txn.RemoveFromList:
		_, err = q.Exec(ctx, `DELETE FROM jobrow_lists WHERE key = $1 AND value = $2`, o.Key, o.Value)

	case txn.TrimList:
		offset, limit := collection.Window(o.Start, o.End)
		_, err = q.Exec(ctx, `
			DELETE FROM jobrow_lists WHERE key = $1 AND id NOT IN (
				SELECT id FROM jobrow_lists WHERE key = $1
				ORDER BY seq, id LIMIT $2 OFFSET $3
			)`,
			o.Key, limit, offset,
		)

	case txn.SetRangeInHash:
		for _, f := range o.Fields {
			if _, err := q.Exec(ctx, `
				INSERT INTO jobrow_hashes (id, key, field, value, expire_at)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (key, field) DO UPDATE SET value = EXCLUDED.value`,
				f.ID.String(), o.Key, f.Field, f.Value, f.ExpireAt,
			); err != nil {
				return err
			}
		}

	case txn.RemoveHash:
		_, err = q.Exec(ctx, `DELETE FROM jobrow_hashes WHERE key = $1`, o.Key)

	case txn.ExpireCollection:
		table, terr := collectionTable(o.Kind)
		if terr != nil {
			return terr
		}
		_, err = q.Exec(ctx, `UPDATE `+table+` SET expire_at = $2 WHERE key = $1`, o.Key, o.ExpireAt)

	default:
		return fmt.Errorf("unsupported operation %s", op.Name())
	}
	return err
}

func insertState(ctx context.Context, q querier, st *job.State) error {
	stateID := st.ID
	if stateID.IsNil() {
		stateID = id.NewStateID()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO jobrow_states (id, job_id, name, reason, created_at, data)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		stateID.String(), st.JobID.String(), st.Name, st.Reason, st.CreatedAt.UTC(), st.Data,
	)
	return err
}
