package bunstore

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/queue"
)

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// parseID parses a stored ID and checks its prefix.
func parseID(s string, prefix id.Prefix) (id.ID, error) {
	parsed, err := id.ParseWithPrefix(s, prefix)
	if err != nil {
		return id.Nil, fmt.Errorf("jobrow/bun: parse id %q: %w", s, err)
	}
	return parsed, nil
}

// utc normalizes an optional timestamp.
func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// stamp normalizes an optional lease timestamp.
func stamp(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	s := queue.Stamp(*t)
	return &s
}

// affected reports the number of rows a statement touched.
func affected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// page applies a limit and offset where zero means "no limit". SQLite
// rejects OFFSET without LIMIT, so an offset alone gets the largest limit.
func page(q *bun.SelectQuery, limit, offset int) *bun.SelectQuery {
	if limit <= 0 {
		if offset <= 0 {
			return q
		}
		limit = math.MaxInt32
	}
	q = q.Limit(limit)
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}
