package job

import (
	"encoding/json"
	"fmt"

	"github.com/xraph/jobrow"
)

// Invocation describes what a job calls. The store keeps it serialized in
// Job.InvocationData and Job.Arguments and never interprets it.
type Invocation struct {
	Type           string          `json:"type"`
	Method         string          `json:"method"`
	ParameterTypes []string        `json:"parameter_types,omitempty"`
	Arguments      json.RawMessage `json:"-"`
}

// Encode serializes the invocation into the two payload columns of a job.
func (inv *Invocation) Encode() (data, args []byte, err error) {
	if inv.Type == "" || inv.Method == "" {
		return nil, nil, fmt.Errorf("%w: type and method are required", jobrow.ErrInvalidInvocation)
	}
	data, err = json.Marshal(inv)
	if err != nil {
		return nil, nil, fmt.Errorf("encode invocation: %w", err)
	}
	args = inv.Arguments
	if len(args) == 0 {
		args = []byte("[]")
	}
	return data, args, nil
}

// DecodeInvocation parses the payload columns of a job.
func DecodeInvocation(data, args []byte) (*Invocation, error) {
	var inv Invocation
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("%w: %w", jobrow.ErrInvalidInvocation, err)
	}
	if inv.Type == "" || inv.Method == "" {
		return nil, fmt.Errorf("%w: missing type or method", jobrow.ErrInvalidInvocation)
	}
	if len(args) > 0 && !json.Valid(args) {
		return nil, fmt.Errorf("%w: arguments are not valid JSON", jobrow.ErrInvalidInvocation)
	}
	inv.Arguments = json.RawMessage(args)
	return &inv, nil
}
