package job

import (
	"context"

	"github.com/xraph/jobrow/id"
)

// ListOpts controls pagination for job list queries.
type ListOpts struct {
	// Limit is the maximum number of rows to return. Zero means no limit.
	Limit int
	// Offset is the number of rows to skip.
	Offset int
}

// Store defines the persistence contract for jobs, parameters and states.
type Store interface {
	// CreateJob inserts a job together with its initial parameters.
	CreateJob(ctx context.Context, j *Job, params []*Parameter) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// SetParameter inserts or replaces the named parameter of a job.
	SetParameter(ctx context.Context, jobID id.JobID, name, value string) error

	// GetParameter returns the named parameter value of a job.
	GetParameter(ctx context.Context, jobID id.JobID, name string) (string, error)

	// ListParameters returns every parameter of a job ordered by name.
	ListParameters(ctx context.Context, jobID id.JobID) ([]*Parameter, error)

	// GetState retrieves one state history row.
	GetState(ctx context.Context, stateID id.StateID) (*State, error)

	// ListStates returns the state history of a job, newest first.
	ListStates(ctx context.Context, jobID id.JobID) ([]*State, error)

	// ListJobsByState returns jobs whose current state name matches, newest
	// first.
	ListJobsByState(ctx context.Context, state string, opts ListOpts) ([]*Job, error)

	// CountJobsByState returns the number of jobs in the given state.
	CountJobsByState(ctx context.Context, state string) (int64, error)
}
