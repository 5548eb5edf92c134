package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // register the sqlite3 driver
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/xraph/jobrow/store"
	bunstore "github.com/xraph/jobrow/store/bun"
)

var _ store.Store = (*Store)(nil)

// defaultParams are appended to a DSN that carries no query string.
// Immediate transactions take the write lock up front, so two writers never
// deadlock upgrading a shared lock.
const defaultParams = "_busy_timeout=5000&_txlock=immediate"

// Store is a bunstore.Store over a SQLite handle it owns.
type Store struct {
	*bunstore.Store
	db *bun.DB
}

// Open opens the SQLite database at dsn, e.g. "file:jobrow.db" or
// "file::memory:?cache=shared". The pool is limited to one connection:
// SQLite serializes writers anyway, and a single connection keeps an
// in-memory database alive and shared.
func Open(dsn string, opts ...bunstore.Option) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("jobrow/sqlite: empty dsn")
	}
	if !strings.Contains(dsn, "?") {
		dsn += "?" + defaultParams
	}

	sqldb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("jobrow/sqlite: open: %w", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	return &Store{
		Store: bunstore.New(db, opts...),
		db:    db,
	}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("jobrow/sqlite: close: %w", err)
	}
	return nil
}
