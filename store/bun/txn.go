package bunstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/collection"
	"github.com/xraph/jobrow/counter"
	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/job"
	"github.com/xraph/jobrow/txn"
)

// CommitTransaction applies ops in order inside one database transaction.
func (s *Store) CommitTransaction(ctx context.Context, ops []txn.Op) error {
	if len(ops) == 0 {
		return nil
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, op := range ops {
			if err := applyOp(ctx, tx, op); err != nil {
				return fmt.Errorf("%s: %w", op.Name(), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("jobrow/bun: commit transaction: %w", err)
	}
	return nil
}

func applyOp(ctx context.Context, db bun.IDB, op txn.Op) error {
	var err error
	switch o := op.(type) {
	case txn.ExpireJob:
		_, err = db.NewUpdate().Model((*jobModel)(nil)).
			Set("expire_at = ?", o.ExpireAt.UTC()).
			Where("id = ?", o.JobID.String()).
			Exec(ctx)

	case txn.PersistJob:
		_, err = db.NewUpdate().Model((*jobModel)(nil)).
			Set("expire_at = NULL").
			Where("id = ?", o.JobID.String()).
			Exec(ctx)

	case txn.SetJobState:
		st := o.State
		if st.ID.IsNil() {
			copied := *st
			copied.ID = id.NewStateID()
			st = &copied
		}
		res, uerr := db.NewUpdate().Model((*jobModel)(nil)).
			Set("state_id = ?", st.ID.String()).
			Set("state_name = ?", st.Name).
			Where("id = ?", st.JobID.String()).
			Exec(ctx)
		if uerr != nil {
			return uerr
		}
		n, aerr := affected(res)
		if aerr != nil {
			return aerr
		}
		if n == 0 {
			return jobrow.ErrJobNotFound
		}
		err = insertState(ctx, db, st)

	case txn.AddJobState:
		exists, eerr := db.NewSelect().Model((*jobModel)(nil)).
			Where("id = ?", o.State.JobID.String()).
			Exists(ctx)
		if eerr != nil {
			return eerr
		}
		if !exists {
			return jobrow.ErrJobNotFound
		}
		err = insertState(ctx, db, o.State)

	case txn.AddToQueue:
		_, err = db.NewInsert().Model(toEntryModel(o.Entry)).Exec(ctx)

	case txn.IncrementCounter:
		err = insertCounter(ctx, db, o.Counter)

	case txn.AddToSet:
		_, err = db.NewInsert().Model(toSetModel(o.Member)).
			On("CONFLICT (key, value) DO UPDATE").
			Set("score = EXCLUDED.score").
			Exec(ctx)

	case txn.RemoveFromSet:
		_, err = db.NewDelete().Model((*setModel)(nil)).
			Where("key = ?", o.Key).
			Where("value = ?", o.Value).
			Exec(ctx)

	case txn.InsertToList:
		_, err = db.NewInsert().Model(toListModel(o.Item)).Exec(ctx)

	case txn.RemoveFromList:
		_, err = db.NewDelete().Model((*listModel)(nil)).
			Where("key = ?", o.Key).
			Where("value = ?", o.Value).
			Exec(ctx)

	case txn.TrimList:
		offset, limit := collection.Window(o.Start, o.End)
		if limit == 0 {
			_, err = db.NewDelete().Model((*listModel)(nil)).
				Where("key = ?", o.Key).
				Exec(ctx)
			break
		}
		keep := db.NewSelect().Model((*listModel)(nil)).
			Column("id").
			Where("key = ?", o.Key).
			Order("seq ASC", "id ASC").
			Limit(limit).
			Offset(offset)
		_, err = db.NewDelete().Model((*listModel)(nil)).
			Where("key = ?", o.Key).
			Where("id NOT IN (?)", keep).
			Exec(ctx)

	case txn.SetRangeInHash:
		for _, f := range o.Fields {
			if _, err := db.NewInsert().Model(toHashModel(o.Key, f)).
				On("CONFLICT (key, field) DO UPDATE").
				Set("value = EXCLUDED.value").
				Exec(ctx); err != nil {
				return err
			}
		}

	case txn.RemoveHash:
		_, err = db.NewDelete().Model((*hashModel)(nil)).
			Where("key = ?", o.Key).
			Exec(ctx)

	case txn.ExpireCollection:
		model, merr := collectionModel(o.Kind)
		if merr != nil {
			return merr
		}
		_, err = db.NewUpdate().Model(model).
			Set("expire_at = ?", utc(o.ExpireAt)).
			Where("key = ?", o.Key).
			Exec(ctx)

	default:
		return fmt.Errorf("unsupported operation %s", op.Name())
	}
	return err
}

func insertState(ctx context.Context, db bun.IDB, st *job.State) error {
	m, err := toStateModel(st)
	if err != nil {
		return err
	}
	_, err = db.NewInsert().Model(m).Exec(ctx)
	return err
}

func insertCounter(ctx context.Context, db bun.IDB, c *counter.Counter) error {
	m := &counterModel{ID: c.ID.String(), Key: c.Key, Value: c.Value, ExpireAt: utc(c.ExpireAt)}
	_, err := db.NewInsert().Model(m).Exec(ctx)
	return err
}
