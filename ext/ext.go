package ext

import (
	"context"

	"github.com/xraph/jobrow/id"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Lease hooks
// ──────────────────────────────────────────────────

// LeaseAcquired is called after a queue row is claimed.
type LeaseAcquired interface {
	OnLeaseAcquired(ctx context.Context, queue string, jobID id.JobID) error
}

// LeaseReleased is called after a leased row is removed from its queue.
type LeaseReleased interface {
	OnLeaseReleased(ctx context.Context, queue string, jobID id.JobID) error
}

// LeaseRequeued is called after a leased row is made visible again.
type LeaseRequeued interface {
	OnLeaseRequeued(ctx context.Context, queue string, jobID id.JobID) error
}

// LeaseRenewFailed is called when a keep-alive renewal fails or finds the
// lease taken over.
type LeaseRenewFailed interface {
	OnLeaseRenewFailed(ctx context.Context, queue string, jobID id.JobID, err error) error
}

// ──────────────────────────────────────────────────
// Maintenance hooks
// ──────────────────────────────────────────────────

// CountersFolded is called after an aggregation pass folded rows into keys.
type CountersFolded interface {
	OnCountersFolded(ctx context.Context, rows, keys int) error
}

// RecordsExpired is called after an expiration batch removed rows of kind.
type RecordsExpired interface {
	OnRecordsExpired(ctx context.Context, kind string, removed int) error
}

// TransactionCommitted is called after a write transaction committed.
type TransactionCommitted interface {
	OnTransactionCommitted(ctx context.Context, ops int) error
}

// Shutdown is called when the engine stops.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
