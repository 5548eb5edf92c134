package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/job"
)

func copyJob(j *job.Job) *job.Job {
	cp := *j
	cp.InvocationData = slices.Clone(j.InvocationData)
	cp.Arguments = slices.Clone(j.Arguments)
	cp.ExpireAt = cloneTime(j.ExpireAt)
	return &cp
}

func copyState(s *job.State) *job.State {
	cp := *s
	cp.Data = cloneMap(s.Data)
	return &cp
}

// CreateJob inserts a job together with its initial parameters.
func (m *Store) CreateJob(_ context.Context, j *job.Job, params []*job.Parameter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	m.jobs[key] = copyJob(j)
	byName := make(map[string]*job.Parameter, len(params))
	for _, p := range params {
		cp := *p
		cp.JobID = j.ID
		if cp.ID.IsNil() {
			cp.ID = id.NewParameterID()
		}
		byName[p.Name] = &cp
	}
	m.params[key] = byName
	return nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, jobrow.ErrJobNotFound
	}
	return copyJob(j), nil
}

// SetParameter inserts or replaces the named parameter of a job.
func (m *Store) SetParameter(_ context.Context, jobID id.JobID, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobID.String()
	if _, ok := m.jobs[key]; !ok {
		return jobrow.ErrJobNotFound
	}
	byName := m.params[key]
	if byName == nil {
		byName = make(map[string]*job.Parameter)
		m.params[key] = byName
	}
	if p, ok := byName[name]; ok {
		p.Value = value
		return nil
	}
	byName[name] = &job.Parameter{ID: id.NewParameterID(), JobID: jobID, Name: name, Value: value}
	return nil
}

// GetParameter returns the named parameter value of a job.
func (m *Store) GetParameter(_ context.Context, jobID id.JobID, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.params[jobID.String()][name]
	if !ok {
		return "", jobrow.ErrParameterNotFound
	}
	return p.Value, nil
}

// ListParameters returns every parameter of a job ordered by name.
func (m *Store) ListParameters(_ context.Context, jobID id.JobID) ([]*job.Parameter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byName := m.params[jobID.String()]
	result := make([]*job.Parameter, 0, len(byName))
	for _, p := range byName {
		cp := *p
		result = append(result, &cp)
	}
	slices.SortFunc(result, func(a, b *job.Parameter) int { return cmp.Compare(a.Name, b.Name) })
	return result, nil
}

// GetState retrieves one state history row.
func (m *Store) GetState(_ context.Context, stateID id.StateID) (*job.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.states[stateID.String()]
	if !ok {
		return nil, jobrow.ErrStateNotFound
	}
	return copyState(s), nil
}

// ListStates returns the state history of a job, newest first.
func (m *Store) ListStates(_ context.Context, jobID id.JobID) ([]*job.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.jobStates[jobID.String()]
	result := make([]*job.State, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		result = append(result, copyState(m.states[ids[i]]))
	}
	return result, nil
}

// ListJobsByState returns jobs whose current state name matches, newest
// first.
func (m *Store) ListJobsByState(_ context.Context, state string, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Job, 0)
	for _, j := range m.jobs {
		if j.StateName == state {
			result = append(result, copyJob(j))
		}
	}
	slices.SortFunc(result, func(a, b *job.Job) int { return b.ID.Compare(a.ID) })
	return window(result, opts.Offset, opts.Limit), nil
}

// CountJobsByState returns the number of jobs in the given state.
func (m *Store) CountJobsByState(_ context.Context, state string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, j := range m.jobs {
		if j.StateName == state {
			n++
		}
	}
	return n, nil
}

// deleteJobLocked removes a job and everything hanging off it.
func (m *Store) deleteJobLocked(key string) {
	delete(m.jobs, key)
	delete(m.params, key)
	for _, sid := range m.jobStates[key] {
		delete(m.states, sid)
	}
	delete(m.jobStates, key)
	for eid, e := range m.entries {
		if e.JobID.String() == key {
			delete(m.entries, eid)
		}
	}
}
