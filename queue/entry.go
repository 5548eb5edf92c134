package queue

import (
	"time"

	"github.com/xraph/jobrow/id"
)

// Entry is one row of the job queue table.
type Entry struct {
	ID        id.EntryID `json:"id"`
	JobID     id.JobID   `json:"job_id"`
	Queue     string     `json:"queue"`
	AddedAt   time.Time  `json:"added_at"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
}

// NewEntry builds an unleased row for jobID in queue.
func NewEntry(queue string, jobID id.JobID) *Entry {
	return &Entry{
		ID:      id.NewEntryID(),
		JobID:   jobID,
		Queue:   queue,
		AddedAt: Stamp(time.Now()),
	}
}

// Visible reports whether the row can be claimed given the visibility
// threshold (now minus the invisibility timeout).
func (e *Entry) Visible(threshold time.Time) bool {
	return e.FetchedAt == nil || e.FetchedAt.Before(threshold)
}

// Stamp normalizes a lease timestamp to UTC milliseconds. Every backend
// stores at least millisecond precision, so a stamp read back compares
// equal to the one written.
func Stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// SameStamp reports whether a stored lease timestamp equals want.
func SameStamp(stored *time.Time, want time.Time) bool {
	return stored != nil && Stamp(*stored).Equal(Stamp(want))
}
