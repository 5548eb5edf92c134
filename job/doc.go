// Package job defines the job row, its parameters and state history, the
// read-only projections consumed by a job framework, and the store interface
// for them.
//
// # Rows
//
// A [Job] carries an opaque invocation payload and arguments, a creation
// time, an optional expiration and a pointer to its current [State]. States
// are append-only: every transition writes a new State row and moves the
// pointer. [Parameter] rows hold per-job name/value pairs, unique by name.
//
// # Projections
//
// [Data] and [StateData] are what a job framework reads back. Decoding the
// invocation never fails the read: a payload that no longer decodes is
// reported through Data.LoadErr.
//
// Writes to jobs other than creation and parameters go through the txn
// package so they commit together with queue and counter changes.
package job
