package job

import (
	"time"

	"github.com/xraph/jobrow/id"
)

// Well-known state names.
const (
	StateEnqueued   = "Enqueued"
	StateScheduled  = "Scheduled"
	StateProcessing = "Processing"
	StateSucceeded  = "Succeeded"
	StateFailed     = "Failed"
	StateDeleted    = "Deleted"
	StateAwaiting   = "Awaiting"
)

// Job is a stored background job.
type Job struct {
	ID             id.JobID   `json:"id"`
	InvocationData []byte     `json:"invocation_data"`
	Arguments      []byte     `json:"arguments"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpireAt       *time.Time `json:"expire_at,omitempty"`
	StateID        id.StateID `json:"state_id,omitempty"`
	StateName      string     `json:"state_name,omitempty"`
}

// Parameter is a named value attached to a job. Name is unique per job.
type Parameter struct {
	ID    id.ParameterID `json:"id"`
	JobID id.JobID       `json:"job_id"`
	Name  string         `json:"name"`
	Value string         `json:"value"`
}

// State is one entry of a job's state history.
type State struct {
	ID        id.StateID        `json:"id"`
	JobID     id.JobID          `json:"job_id"`
	Name      string            `json:"name"`
	Reason    string            `json:"reason,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Data      map[string]string `json:"data,omitempty"`
}

// NewState builds a state row for jobID stamped with now.
func NewState(jobID id.JobID, name, reason string, data map[string]string) *State {
	return &State{
		ID:        id.NewStateID(),
		JobID:     jobID,
		Name:      name,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
		Data:      data,
	}
}
