package queue

import (
	"context"
	"time"

	"github.com/xraph/jobrow/id"
)

// ListOpts controls pagination for queue listings.
type ListOpts struct {
	// Limit is the maximum number of rows to return. Zero means no limit.
	Limit int
	// Offset is the number of rows to skip.
	Offset int
}

// Store defines the persistence contract for the job queue table. Rows are
// inserted through the txn package.
//
// Every mutation is conditional. A false result means the row no longer
// matched (deleted or re-stamped elsewhere) and is not an error.
type Store interface {
	// NextVisible returns the most recently added row in one of queues whose
	// FetchedAt is empty or before threshold, or nil when there is none.
	NextVisible(ctx context.Context, queues []string, threshold time.Time) (*Entry, error)

	// StampEntry sets FetchedAt to at if it currently equals expected (nil
	// meaning empty).
	StampEntry(ctx context.Context, entryID id.EntryID, expected *time.Time, at time.Time) (bool, error)

	// DeleteEntry removes the row if its queue and FetchedAt match.
	DeleteEntry(ctx context.Context, entryID id.EntryID, queue string, fetchedAt time.Time) (bool, error)

	// RequeueEntry clears FetchedAt if it equals fetchedAt.
	RequeueEntry(ctx context.Context, entryID id.EntryID, fetchedAt time.Time) (bool, error)

	// ListQueues returns the distinct queue names in use, sorted.
	ListQueues(ctx context.Context) ([]string, error)

	// ListEntries returns rows of queue, oldest first. fetched selects leased
	// rows (FetchedAt set) instead of waiting ones.
	ListEntries(ctx context.Context, queue string, fetched bool, opts ListOpts) ([]*Entry, error)

	// CountEntries returns the number of waiting and leased rows in queue.
	CountEntries(ctx context.Context, queue string) (enqueued, fetched int64, err error)
}
