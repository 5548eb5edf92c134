package counter

import (
	"context"

	"github.com/xraph/jobrow/id"
)

// Store defines the persistence contract for counters. Raw rows are
// inserted through the txn package.
type Store interface {
	// ListCounters returns up to limit raw counter rows in no particular
	// order.
	ListCounters(ctx context.Context, limit int) ([]*Counter, error)

	// FoldCounters deletes the consumed raw rows and applies folds to the
	// aggregate rows (creating missing ones), all in one transaction. When
	// any consumed row is already gone it changes nothing and returns
	// jobrow.ErrCountersStale.
	FoldCounters(ctx context.Context, folds []Fold, consumed []id.CounterID) error

	// GetAggregate returns the aggregate row of key.
	GetAggregate(ctx context.Context, key string) (*Aggregate, error)

	// CounterValue returns the aggregate total of key plus every raw row not
	// yet folded. Unknown keys count as zero.
	CounterValue(ctx context.Context, key string) (int64, error)
}
