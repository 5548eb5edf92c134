package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/job"
)

// CreateExpiredJob stores a job that expires after expireIn unless a later
// state change persists it. The job has no state until one is set.
func (e *Engine) CreateExpiredJob(
	ctx context.Context,
	inv *job.Invocation,
	params map[string]string,
	createdAt time.Time,
	expireIn time.Duration,
) (id.JobID, error) {
	if inv == nil {
		return id.Nil, fmt.Errorf("%w: invocation is required", jobrow.ErrInvalidInvocation)
	}
	data, args, err := inv.Encode()
	if err != nil {
		return id.Nil, err
	}

	expireAt := createdAt.UTC().Add(expireIn)
	j := &job.Job{
		ID:             id.NewJobID(),
		InvocationData: data,
		Arguments:      args,
		CreatedAt:      createdAt.UTC(),
		ExpireAt:       &expireAt,
	}

	ps := make([]*job.Parameter, 0, len(params))
	for name, value := range params {
		ps = append(ps, &job.Parameter{
			ID:    id.NewParameterID(),
			JobID: j.ID,
			Name:  name,
			Value: value,
		})
	}

	if err := e.store.CreateJob(ctx, j, ps); err != nil {
		return id.Nil, err
	}
	return j.ID, nil
}

// GetJobData returns the job projection. A stored invocation that no longer
// decodes is reported in Data.LoadErr, not as an error.
func (e *Engine) GetJobData(ctx context.Context, jobID id.JobID) (*job.Data, error) {
	j, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return job.NewData(j), nil
}

// GetStateData returns the current state of a job. It returns
// ErrStateNotFound when the job has no state yet.
func (e *Engine) GetStateData(ctx context.Context, jobID id.JobID) (*job.StateData, error) {
	j, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.StateID.IsNil() {
		return nil, jobrow.ErrStateNotFound
	}
	s, err := e.store.GetState(ctx, j.StateID)
	if err != nil {
		return nil, err
	}
	return job.NewStateData(s), nil
}

// SetJobParameter sets a named parameter of a job.
func (e *Engine) SetJobParameter(ctx context.Context, jobID id.JobID, name, value string) error {
	return e.store.SetParameter(ctx, jobID, name, value)
}

// GetJobParameter returns a named parameter of a job.
func (e *Engine) GetJobParameter(ctx context.Context, jobID id.JobID, name string) (string, error) {
	return e.store.GetParameter(ctx, jobID, name)
}

// GetCounter returns the value of a counter: its aggregate plus every raw
// row not yet folded.
func (e *Engine) GetCounter(ctx context.Context, key string) (int64, error) {
	return e.store.CounterValue(ctx, key)
}

// ──────────────────────────────────────────────────
// Hashes
// ──────────────────────────────────────────────────

// GetAllEntriesFromHash returns every field of a hash.
func (e *Engine) GetAllEntriesFromHash(ctx context.Context, key string) (map[string]string, error) {
	return e.store.GetHash(ctx, key)
}

// GetValueFromHash returns one field of a hash.
func (e *Engine) GetValueFromHash(ctx context.Context, key, field string) (string, error) {
	return e.store.GetHashValue(ctx, key, field)
}

// HashCount returns the number of fields in a hash.
func (e *Engine) HashCount(ctx context.Context, key string) (int64, error) {
	return e.store.CountHash(ctx, key)
}

// HashTTL returns the time left before a hash expires.
func (e *Engine) HashTTL(ctx context.Context, key string) (time.Duration, error) {
	return e.store.HashTTL(ctx, key)
}

// ──────────────────────────────────────────────────
// Sets
// ──────────────────────────────────────────────────

// GetAllItemsFromSet returns every member of a set.
func (e *Engine) GetAllItemsFromSet(ctx context.Context, key string) ([]string, error) {
	return e.store.ListSet(ctx, key)
}

// FirstByLowestScore returns the lowest-scored member within [from, to].
func (e *Engine) FirstByLowestScore(ctx context.Context, key string, from, to float64) (string, error) {
	return e.store.FirstByLowestScore(ctx, key, from, to)
}

// SetCount returns the number of members in a set.
func (e *Engine) SetCount(ctx context.Context, key string) (int64, error) {
	return e.store.CountSet(ctx, key)
}

// SetRange returns set members at positions start through end.
func (e *Engine) SetRange(ctx context.Context, key string, start, end int) ([]string, error) {
	return e.store.SetRange(ctx, key, start, end)
}

// SetTTL returns the time left before a set expires.
func (e *Engine) SetTTL(ctx context.Context, key string) (time.Duration, error) {
	return e.store.SetTTL(ctx, key)
}

// ──────────────────────────────────────────────────
// Lists
// ──────────────────────────────────────────────────

// GetAllItemsFromList returns every item of a list.
func (e *Engine) GetAllItemsFromList(ctx context.Context, key string) ([]string, error) {
	return e.store.ListItems(ctx, key)
}

// ListCount returns the number of items in a list.
func (e *Engine) ListCount(ctx context.Context, key string) (int64, error) {
	return e.store.CountList(ctx, key)
}

// ListRange returns list items at positions start through end.
func (e *Engine) ListRange(ctx context.Context, key string, start, end int) ([]string, error) {
	return e.store.ListRange(ctx, key, start, end)
}

// ListTTL returns the time left before a list expires.
func (e *Engine) ListTTL(ctx context.Context, key string) (time.Duration, error) {
	return e.store.ListTTL(ctx, key)
}
