// Package store defines the aggregate persistence interface.
//
// Each subsystem defines its own store interface. The composite [Store]
// composes them all. A single backend need only implement Store to satisfy
// every subsystem's persistence contract.
//
// The composite interface:
//
//	type Store interface {
//	    job.Store
//	    queue.Store
//	    counter.Store
//	    collection.Store
//	    cluster.Store
//	    expire.Store
//	    txn.Store
//
//	    Migrate(ctx context.Context) error
//	    Ping(ctx context.Context) error
//	    Close() error
//	}
//
// # Available Backends
//
//   - store/memory: in-memory store for development and testing
//   - store/postgres: PostgreSQL backend using pgx/v5
//   - store/bun: Bun ORM backend on PostgreSQL or SQLite
//   - store/mongo: MongoDB backend using mongo-driver v2
//
// Every backend passes the store/storetest conformance suite.
//
// # Concurrency contract
//
// Backends must make the queue mutations conditional on the lease stamp
// they were given, apply FoldCounters and CommitTransaction atomically,
// and store timestamps with at least millisecond precision.
//
// # Migrations
//
// Call Migrate once at startup to create or update the schema:
//
//	if err := s.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package store
