// Package store defines the aggregate persistence interface. Each subsystem
// (job, queue, counter, collection, cluster, expire, txn) defines its own
// store interface. The composite Store composes them all. Backends:
// Memory, Postgres (pgx), Bun (PostgreSQL or SQLite) and MongoDB.
package store

import (
	"context"

	"github.com/xraph/jobrow/cluster"
	"github.com/xraph/jobrow/collection"
	"github.com/xraph/jobrow/counter"
	"github.com/xraph/jobrow/expire"
	"github.com/xraph/jobrow/job"
	"github.com/xraph/jobrow/queue"
	"github.com/xraph/jobrow/txn"
)

// Store is the aggregate persistence interface.
// A single backend implements every subsystem store.
type Store interface {
	job.Store
	queue.Store
	counter.Store
	collection.Store
	cluster.Store
	expire.Store
	txn.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
