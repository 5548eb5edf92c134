package txn

import (
	"time"

	"github.com/xraph/jobrow/collection"
	"github.com/xraph/jobrow/counter"
	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/job"
	"github.com/xraph/jobrow/queue"
)

// Op is one buffered write. Backends switch on the concrete type.
type Op interface {
	Name() string
}

// ExpireJob sets a job's expiration.
type ExpireJob struct {
	JobID    id.JobID
	ExpireAt time.Time
}

// PersistJob clears a job's expiration.
type PersistJob struct {
	JobID id.JobID
}

// SetJobState appends a state row and makes it the job's current state.
type SetJobState struct {
	State *job.State
}

// AddJobState appends a state row without changing the current state.
type AddJobState struct {
	State *job.State
}

// AddToQueue inserts a queue row.
type AddToQueue struct {
	Entry *queue.Entry
}

// IncrementCounter inserts a raw counter row. Decrements carry a negative
// value.
type IncrementCounter struct {
	Counter *counter.Counter
}

// AddToSet inserts a set member, or updates the score of an existing one.
type AddToSet struct {
	Member *collection.SetMember
}

// RemoveFromSet deletes a set member.
type RemoveFromSet struct {
	Key   string
	Value string
}

// InsertToList appends a list item.
type InsertToList struct {
	Item *collection.ListItem
}

// RemoveFromList deletes every item of a list equal to Value.
type RemoveFromList struct {
	Key   string
	Value string
}

// TrimList keeps only the items at positions Start through End.
type TrimList struct {
	Key   string
	Start int
	End   int
}

// SetRangeInHash inserts or updates hash fields.
type SetRangeInHash struct {
	Key    string
	Fields []*collection.HashField
}

// RemoveHash deletes every field of a hash.
type RemoveHash struct {
	Key string
}

// ExpireCollection sets (or with a nil ExpireAt, clears) the expiration of
// every row of a hash, list or set.
type ExpireCollection struct {
	Kind     collection.Kind
	Key      string
	ExpireAt *time.Time
}

func (ExpireJob) Name() string        { return "ExpireJob" }
func (PersistJob) Name() string       { return "PersistJob" }
func (SetJobState) Name() string      { return "SetJobState" }
func (AddJobState) Name() string      { return "AddJobState" }
func (AddToQueue) Name() string       { return "AddToQueue" }
func (IncrementCounter) Name() string { return "IncrementCounter" }
func (AddToSet) Name() string         { return "AddToSet" }
func (RemoveFromSet) Name() string    { return "RemoveFromSet" }
func (InsertToList) Name() string     { return "InsertToList" }
func (RemoveFromList) Name() string   { return "RemoveFromList" }
func (TrimList) Name() string         { return "TrimList" }
func (SetRangeInHash) Name() string   { return "SetRangeInHash" }
func (RemoveHash) Name() string       { return "RemoveHash" }
func (ExpireCollection) Name() string { return "ExpireCollection" }
