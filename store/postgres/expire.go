package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/expire"
)

var expireTables = map[expire.Kind]string{
	expire.KindAggregatedCounter: "jobrow_aggregated_counters",
	expire.KindJob:               "jobrow_jobs",
	expire.KindList:              "jobrow_lists",
	expire.KindSet:               "jobrow_sets",
	expire.KindHash:              "jobrow_hashes",
}

// PurgeExpired deletes up to limit expired rows of kind, earliest first.
// Job parameters, states and queue rows go with their job through
// ON DELETE CASCADE.
func (s *Store) PurgeExpired(ctx context.Context, kind expire.Kind, before time.Time, limit int) (int, error) {
	table, ok := expireTables[kind]
	if !ok {
		return 0, fmt.Errorf("%w: %q", jobrow.ErrUnknownKind, kind)
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM `+table+` WHERE id IN (
			SELECT id FROM `+table+`
			WHERE expire_at < $1
			ORDER BY expire_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)`,
		before.UTC(), limitArg(limit),
	)
	if err != nil {
		return 0, fmt.Errorf("jobrow/postgres: purge %s: %w", kind, err)
	}
	return int(tag.RowsAffected()), nil
}
