// Package txn groups writes into a unit that commits atomically.
//
// A [Transaction] buffers typed operations (state changes, queue inserts,
// counter deltas, hash/list/set changes, expirations) and hands them to the
// backend's [Store.CommitTransaction] in one call. Row IDs are generated
// when an operation is buffered, so a backend only inserts, updates or
// deletes.
//
// After a commit that added queue rows, every distinct queue is announced
// once on the queue.Signal so idle fetchers wake up. Nothing is announced
// when the commit fails.
package txn
