package job_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/job"
)

func TestInvocationRoundTrip(t *testing.T) {
	inv := &job.Invocation{
		Type:           "mailer",
		Method:         "Send",
		ParameterTypes: []string{"string"},
		Arguments:      json.RawMessage(`["a@example.com"]`),
	}
	data, args, err := inv.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := job.DecodeInvocation(data, args)
	if err != nil {
		t.Fatalf("DecodeInvocation: %v", err)
	}
	if got.Type != "mailer" || got.Method != "Send" {
		t.Errorf("decoded %+v", got)
	}
	if string(got.Arguments) != `["a@example.com"]` {
		t.Errorf("arguments = %s", got.Arguments)
	}
}

func TestEncodeRequiresTarget(t *testing.T) {
	_, _, err := (&job.Invocation{Type: "x"}).Encode()
	if !errors.Is(err, jobrow.ErrInvalidInvocation) {
		t.Fatalf("expected ErrInvalidInvocation, got %v", err)
	}
}

func TestNewDataAttachesLoadError(t *testing.T) {
	tests := []struct {
		name string
		data string
		args string
	}{
		{"not json", "{broken", "[]"},
		{"missing method", `{"type":"t"}`, "[]"},
		{"bad arguments", `{"type":"t","method":"m"}`, "{nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &job.Job{
				ID:             id.NewJobID(),
				InvocationData: []byte(tt.data),
				Arguments:      []byte(tt.args),
				CreatedAt:      time.Now(),
				StateName:      job.StateEnqueued,
			}
			d := job.NewData(j)
			if d.LoadErr == nil {
				t.Fatal("expected load error")
			}
			if !errors.Is(d.LoadErr, jobrow.ErrInvalidInvocation) {
				t.Errorf("load error %v does not wrap ErrInvalidInvocation", d.LoadErr)
			}
			if d.Job != nil {
				t.Error("job must be nil when the payload does not decode")
			}
			if d.State != job.StateEnqueued {
				t.Errorf("state = %q", d.State)
			}
		})
	}
}

func TestNewStateDataCopies(t *testing.T) {
	s := job.NewState(id.NewJobID(), job.StateFailed, "boom", map[string]string{"k": "v"})
	sd := job.NewStateData(s)
	sd.Data["k"] = "changed"
	if s.Data["k"] != "v" {
		t.Error("state data must not alias the state row")
	}
	if sd.Name != job.StateFailed || sd.Reason != "boom" {
		t.Errorf("got %+v", sd)
	}
}
