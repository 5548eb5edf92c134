// Package queue implements a work queue with visibility timeouts on top of a
// plain row table.
//
// Each [Entry] row carries a nullable lease timestamp (FetchedAt). A row is
// claimable when FetchedAt is empty or older than now minus the invisibility
// timeout. [Manager.FetchNext] picks the most recently added claimable row
// (LIFO) and claims it with a compare-and-swap on FetchedAt, so two processes
// that read the same row cannot both win it. Inside one process, fetches are
// also serialized through the lock.ResourceFetch lock.
//
// A claimed row is returned as a [Lease]. While held, the lease re-stamps the
// row every InvisibilityTimeout/5. Release deletes the row, Requeue clears the
// stamp, and Close requeues any lease that was neither. Every lease mutation
// matches the latest stamp; a mismatch means another process took the row
// over and the mutation is a silent no-op.
//
// Idle fetches sleep for the poll interval or until a [Signal] reports a new
// row, whichever comes first.
package queue
