package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/expire"
)

func expireModel(kind expire.Kind) (any, error) {
	switch kind {
	case expire.KindAggregatedCounter:
		return (*aggregateModel)(nil), nil
	case expire.KindJob:
		return (*jobModel)(nil), nil
	case expire.KindList:
		return (*listModel)(nil), nil
	case expire.KindSet:
		return (*setModel)(nil), nil
	case expire.KindHash:
		return (*hashModel)(nil), nil
	}
	return nil, fmt.Errorf("%w: %q", jobrow.ErrUnknownKind, kind)
}

// PurgeExpired deletes up to limit expired rows of kind, earliest first.
// The schema carries no foreign keys, so job parameters, states and queue
// rows are deleted together with their job in the same transaction.
func (s *Store) PurgeExpired(ctx context.Context, kind expire.Kind, before time.Time, limit int) (int, error) {
	model, err := expireModel(kind)
	if err != nil {
		return 0, err
	}

	var purged int
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		ids := make([]string, 0)
		q := tx.NewSelect().Model(model).
			Column("id").
			Where("expire_at < ?", before.UTC()).
			Order("expire_at ASC")
		if err := page(q, limit, 0).Scan(ctx, &ids); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if kind == expire.KindJob {
			children := []any{(*parameterModel)(nil), (*stateModel)(nil), (*entryModel)(nil)}
			for _, child := range children {
				if _, err := tx.NewDelete().Model(child).
					Where("job_id IN (?)", bun.In(ids)).
					Exec(ctx); err != nil {
					return err
				}
			}
		}

		res, err := tx.NewDelete().Model(model).Where("id IN (?)", bun.In(ids)).Exec(ctx)
		if err != nil {
			return err
		}
		n, err := affected(res)
		if err != nil {
			return err
		}
		purged = int(n)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("jobrow/bun: purge %s: %w", kind, err)
	}
	return purged, nil
}
