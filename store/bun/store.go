package bunstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/cluster"
	"github.com/xraph/jobrow/collection"
	"github.com/xraph/jobrow/counter"
	"github.com/xraph/jobrow/expire"
	"github.com/xraph/jobrow/job"
	"github.com/xraph/jobrow/queue"
	"github.com/xraph/jobrow/txn"
)

// Ensure Store implements all subsystem interfaces at compile time.
var (
	_ job.Store        = (*Store)(nil)
	_ queue.Store      = (*Store)(nil)
	_ counter.Store    = (*Store)(nil)
	_ collection.Store = (*Store)(nil)
	_ cluster.Store    = (*Store)(nil)
	_ expire.Store     = (*Store)(nil)
	_ txn.Store        = (*Store)(nil)
)

// Store is a Bun ORM implementation of store.Store.
// The caller owns the *bun.DB lifecycle; Store never closes it.
type Store struct {
	db     *bun.DB
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new Bun store. The caller owns the db lifecycle; the Store
// will not close it on Close().
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying *bun.DB for advanced usage.
func (s *Store) DB() *bun.DB {
	return s.db
}

// migration is one named schema step. Steps run in order, each inside its
// own transaction, and are recorded in jobrow_migrations once applied.
type migration struct {
	name string
	up   func(ctx context.Context, db bun.IDB) error
}

// tables lists every model in creation order.
var tables = []any{
	(*jobModel)(nil),
	(*parameterModel)(nil),
	(*stateModel)(nil),
	(*entryModel)(nil),
	(*counterModel)(nil),
	(*aggregateModel)(nil),
	(*hashModel)(nil),
	(*listModel)(nil),
	(*setModel)(nil),
	(*serverModel)(nil),
}

// index describes one secondary index. An empty where creates a full index.
type index struct {
	model   any
	name    string
	columns []string
	where   string
}

var indexes = []index{
	{(*jobModel)(nil), "idx_jobrow_jobs_state_name", []string{"state_name", "created_at DESC"}, ""},
	{(*jobModel)(nil), "idx_jobrow_jobs_expire_at", []string{"expire_at"}, "expire_at IS NOT NULL"},
	{(*parameterModel)(nil), "idx_jobrow_job_parameters_job_id", []string{"job_id"}, ""},
	{(*stateModel)(nil), "idx_jobrow_states_job_id", []string{"job_id", "created_at DESC"}, ""},
	{(*entryModel)(nil), "idx_jobrow_job_queue_fetch", []string{"queue", "fetched_at", "added_at DESC"}, ""},
	{(*entryModel)(nil), "idx_jobrow_job_queue_job_id", []string{"job_id"}, ""},
	{(*counterModel)(nil), "idx_jobrow_counters_key", []string{"key"}, ""},
	{(*aggregateModel)(nil), "idx_jobrow_aggregated_counters_expire_at", []string{"expire_at"}, "expire_at IS NOT NULL"},
	{(*hashModel)(nil), "idx_jobrow_hashes_expire_at", []string{"expire_at"}, "expire_at IS NOT NULL"},
	{(*listModel)(nil), "idx_jobrow_lists_key", []string{"key", "seq"}, ""},
	{(*listModel)(nil), "idx_jobrow_lists_expire_at", []string{"expire_at"}, "expire_at IS NOT NULL"},
	{(*setModel)(nil), "idx_jobrow_sets_score", []string{"key", "score", "value"}, ""},
	{(*setModel)(nil), "idx_jobrow_sets_expire_at", []string{"expire_at"}, "expire_at IS NOT NULL"},
}

var migrations = []migration{
	{name: "001_schema", up: func(ctx context.Context, db bun.IDB) error {
		for _, model := range tables {
			if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return err
			}
		}
		for _, ix := range indexes {
			q := db.NewCreateIndex().Model(ix.model).Index(ix.name).IfNotExists()
			for _, col := range ix.columns {
				q = q.ColumnExpr(col)
			}
			if ix.where != "" {
				q = q.Where(ix.where)
			}
			if _, err := q.Exec(ctx); err != nil {
				return fmt.Errorf("%s: %w", ix.name, err)
			}
		}
		return nil
	}},
}

// Migrate creates the schema for the dialect of the db handle.
func (s *Store) Migrate(ctx context.Context) error {
	// Create migrations tracking table.
	_, err := s.db.NewCreateTable().Model((*migrationModel)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return fmt.Errorf("jobrow/bun: create migrations table: %w", err)
	}

	for _, m := range migrations {
		// Check if already applied.
		n, err := s.db.NewSelect().Model((*migrationModel)(nil)).Where("name = ?", m.name).Count(ctx)
		if err != nil {
			return fmt.Errorf("jobrow/bun: check migration %s: %w", m.name, err)
		}
		if n > 0 {
			continue
		}

		err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if err := m.up(ctx, tx); err != nil {
				return fmt.Errorf("%w: %s: %w", jobrow.ErrMigrationFailed, m.name, err)
			}
			// Record migration.
			rec := &migrationModel{Name: m.name, AppliedAt: time.Now().UTC()}
			if _, err := tx.NewInsert().Model(rec).Exec(ctx); err != nil {
				return fmt.Errorf("record migration %s: %w", m.name, err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("jobrow/bun: %w", err)
		}

		s.logger.Info("applied migration",
			slog.String("name", m.name),
			slog.String("dialect", s.db.Dialect().Name().String()),
		)
	}

	return nil
}

// Reset deletes every row of every jobrow table, leaving the schema and
// the migration records in place.
func (s *Store) Reset(ctx context.Context) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range tables {
			if _, err := tx.NewDelete().Model(model).Where("1 = 1").Exec(ctx); err != nil {
				return fmt.Errorf("jobrow/bun: reset: %w", err)
			}
		}
		return nil
	})
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the caller owns the *bun.DB lifecycle.
func (s *Store) Close() error {
	return nil
}
