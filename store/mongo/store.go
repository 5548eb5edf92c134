package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/xraph/jobrow/cluster"
	"github.com/xraph/jobrow/collection"
	"github.com/xraph/jobrow/counter"
	"github.com/xraph/jobrow/expire"
	"github.com/xraph/jobrow/job"
	"github.com/xraph/jobrow/queue"
	"github.com/xraph/jobrow/txn"
)

// Collection name constants.
const (
	colJobs       = "jobrow_jobs"
	colParameters = "jobrow_job_parameters"
	colStates     = "jobrow_states"
	colQueue      = "jobrow_job_queue"
	colCounters   = "jobrow_counters"
	colAggregates = "jobrow_aggregated_counters"
	colHashes     = "jobrow_hashes"
	colLists      = "jobrow_lists"
	colSets       = "jobrow_sets"
	colServers    = "jobrow_servers"
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

// Store is a MongoDB implementation of store.Store.
// The caller owns the client lifecycle; Store never closes it.
type Store struct {
	db     *mongod.Database
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

// New creates a new MongoDB store. The caller owns the client lifecycle;
// the Store will not close it on Close().
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying database for advanced usage.
func (s *Store) DB() *mongod.Database {
	return s.db
}

// Migrate creates the collections and indexes. Collections are created
// up front because a transaction cannot create one on older servers.
func (s *Store) Migrate(ctx context.Context) error {
	existing, err := s.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("jobrow/mongo: list collections: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}

	for col, models := range migrationIndexes() {
		if !have[col] {
			if err := s.db.CreateCollection(ctx, col); err != nil {
				return fmt.Errorf("jobrow/mongo: create collection %s: %w", col, err)
			}
		}
		if len(models) == 0 {
			continue
		}
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("jobrow/mongo: migrate %s indexes: %w", col, err)
		}
	}

	s.logger.Info("mongo indexes ensured", slog.String("database", s.db.Name()))
	return nil
}

// Reset deletes every document of every jobrow collection.
func (s *Store) Reset(ctx context.Context) error {
	for col := range migrationIndexes() {
		if _, err := s.db.Collection(col).DeleteMany(ctx, bson.M{}); err != nil {
			return fmt.Errorf("jobrow/mongo: reset %s: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

// Close is a no-op because the caller owns the client lifecycle.
func (s *Store) Close() error {
	return nil
}

// ── helpers ──────────────────────────────────────────────────────

// isNoDocuments returns true when err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// inTxn runs fn in a multi-document transaction. The callback may be
// retried by the driver on transient errors.
func (s *Store) inTxn(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// findOpts builds sorted find options where a zero limit means "no limit".
func findOpts(sort bson.D, limit, offset int) *options.FindOptionsBuilder {
	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	return opts
}

// decodeAll drains a cursor into a slice of models.
func decodeAll[T any](ctx context.Context, cursor *mongod.Cursor) ([]T, error) {
	defer cursor.Close(ctx)
	models := make([]T, 0)
	if err := cursor.All(ctx, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// migrationIndexes returns the index definitions for all jobrow collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	unique := options.Index().SetUnique(true)
	expiry := mongod.IndexModel{Keys: bson.D{{Key: "expire_at", Value: 1}}}

	return map[string][]mongod.IndexModel{
		colJobs: {
			{Keys: bson.D{{Key: "state_name", Value: 1}, {Key: "created_at", Value: -1}}},
			expiry,
		},
		colParameters: {
			{Keys: bson.D{{Key: "job_id", Value: 1}, {Key: "name", Value: 1}}, Options: unique},
		},
		colStates: {
			{Keys: bson.D{{Key: "job_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colQueue: {
			// Fetch index: newest visible row first.
			{Keys: bson.D{
				{Key: "queue", Value: 1},
				{Key: "fetched_at", Value: 1},
				{Key: "added_at", Value: -1},
			}},
			{Keys: bson.D{{Key: "job_id", Value: 1}}},
		},
		colCounters: {
			{Keys: bson.D{{Key: "key", Value: 1}}},
		},
		colAggregates: {
			{Keys: bson.D{{Key: "key", Value: 1}}, Options: unique},
			expiry,
		},
		colHashes: {
			{Keys: bson.D{{Key: "key", Value: 1}, {Key: "field", Value: 1}}, Options: unique},
			expiry,
		},
		colLists: {
			{Keys: bson.D{{Key: "key", Value: 1}, {Key: "seq", Value: 1}}},
			expiry,
		},
		colSets: {
			{Keys: bson.D{{Key: "key", Value: 1}, {Key: "value", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "key", Value: 1}, {Key: "score", Value: 1}, {Key: "value", Value: 1}}},
			expiry,
		},
		colServers: {
			{Keys: bson.D{{Key: "last_heartbeat", Value: 1}}},
		},
	}
}
