// Package lock provides named, in-process mutual exclusion with a timeout.
//
// A Table maps resource names to single-slot semaphores created on first use
// and kept for the life of the table. Only one Handle per resource is held at
// a time inside one process. The lock does not coordinate processes: rows
// shared across processes are protected by conditional updates in the store,
// and the lock only removes same-process contention in front of them.
//
// When a timeout elapses, Acquire returns a Handle that is not held together
// with ErrLockTimeout. Callers in this module log the timeout and continue
// without exclusion.
package lock
