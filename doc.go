// Package jobrow is a job-storage backend for background-job frameworks that
// keeps jobs, state history, queues and auxiliary key/value structures in a
// plain row store, and supplies the concurrency primitives needed to dispatch
// work safely from many processes sharing that store.
//
// # Quick Start
//
//	st := memory.New()
//	e, err := engine.New(st,
//	    engine.WithConfig(jobrow.DefaultConfig()),
//	    engine.WithLogger(logger),
//	)
//	if err != nil { ... }
//	e.Start(ctx)
//	defer e.Stop(ctx)
//
//	lease, err := e.FetchNextJob(ctx, []string{"default"})
//	...
//	lease.Release(ctx)
//
// # Architecture
//
// Each subsystem (job, queue, counter, collection, cluster, expire, txn)
// defines its own store interface. A single backend implements all of them;
// see the store package for the composite interface and store/memory,
// store/postgres, store/bun, store/sqlite and store/mongo for the backends.
//
// There is no native queue in the row store. The queue package builds one out
// of a lease timestamp on each queue row: a row is claimable when its lease is
// empty or older than the invisibility timeout, and every lease mutation is a
// compare-and-swap on that timestamp.
//
// All entity IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package jobrow
