// Package counter stores integer counters as append-only delta rows and
// folds them into one aggregate row per key.
//
// Writers never update a shared total: each increment or decrement inserts
// a [Counter] row. The [Aggregator] periodically reads a batch of raw rows,
// sums them per key and, in one store transaction, adds the sums to the
// [Aggregate] rows and deletes the raw rows it consumed. A crash before that
// transaction commits leaves the raw rows in place to be folded again; a
// crash after leaves nothing to re-fold, so no delta is counted twice.
package counter
