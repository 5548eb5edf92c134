package job

import (
	"time"
)

// Data is the projection of a job handed to the job framework.
type Data struct {
	Job       *Invocation
	State     string
	CreatedAt time.Time

	// LoadErr is set when the stored invocation no longer decodes. Job is
	// nil in that case; the read itself still succeeds.
	LoadErr error
}

// StateData is the projection of a job's current state.
type StateData struct {
	Name   string
	Reason string
	Data   map[string]string
}

// NewData builds the projection of j, attaching any decode failure.
func NewData(j *Job) *Data {
	d := &Data{State: j.StateName, CreatedAt: j.CreatedAt}
	inv, err := DecodeInvocation(j.InvocationData, j.Arguments)
	if err != nil {
		d.LoadErr = err
		return d
	}
	d.Job = inv
	return d
}

// NewStateData builds the projection of s.
func NewStateData(s *State) *StateData {
	data := make(map[string]string, len(s.Data))
	for k, v := range s.Data {
		data[k] = v
	}
	return &StateData{Name: s.Name, Reason: s.Reason, Data: data}
}
