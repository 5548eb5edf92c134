package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xraph/jobrow/id"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

// parseID parses a stored ID and checks its prefix.
func parseID(s string, prefix id.Prefix) (id.ID, error) {
	parsed, err := id.ParseWithPrefix(s, prefix)
	if err != nil {
		return id.Nil, fmt.Errorf("jobrow/postgres: parse id %q: %w", s, err)
	}
	return parsed, nil
}

// utc normalizes a scanned optional timestamp.
func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// limitArg maps a zero "no limit" value to NULL, which PostgreSQL treats as
// LIMIT ALL.
func limitArg(n int) any {
	if n <= 0 {
		return nil
	}
	return n
}

// collectStrings scans a single text column from every row.
func collectStrings(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	result := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

// nullID maps the Nil ID to NULL.
func nullID(i id.ID) *string {
	if i.IsNil() {
		return nil
	}
	s := i.String()
	return &s
}

// nullText maps an empty string to NULL.
func nullText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
