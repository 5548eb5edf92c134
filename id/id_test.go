package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/jobrow/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"JobID", id.NewJobID, "job_"},
		{"ParameterID", id.NewParameterID, "jparam_"},
		{"StateID", id.NewStateID, "jstate_"},
		{"EntryID", id.NewEntryID, "jq_"},
		{"CounterID", id.NewCounterID, "ctr_"},
		{"AggregateID", id.NewAggregateID, "actr_"},
		{"HashID", id.NewHashID, "hash_"},
		{"ListID", id.NewListID, "list_"},
		{"SetID", id.NewSetID, "set_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"JobID", id.NewJobID, id.ParseJobID},
		{"StateID", id.NewStateID, id.ParseStateID},
		{"EntryID", id.NewEntryID, id.ParseEntryID},
		{"CounterID", id.NewCounterID, id.ParseCounterID},
		{"Any", id.NewSetID, id.ParseAny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseJobID rejects jstate_", id.NewStateID().String(), id.ParseJobID},
		{"ParseStateID rejects jq_", id.NewEntryID().String(), id.ParseStateID},
		{"ParseEntryID rejects ctr_", id.NewCounterID().String(), id.ParseEntryID},
		{"ParseCounterID rejects job_", id.NewJobID().String(), id.ParseCounterID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(tt.input); err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if i.Compare(id.NewJobID()) >= 0 {
		t.Error("nil ID should sort before any generated ID")
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewEntryID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if scanErr := scanned.Scan(val); scanErr != nil {
		t.Fatalf("Scan failed: %v", scanErr)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	var nilID id.ID
	val, err = nilID.Value()
	if err != nil {
		t.Fatalf("Value(nil) failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil value for nil ID, got %v", val)
	}

	var scanned2 id.ID
	if err := scanned2.Scan([]byte{}); err != nil {
		t.Fatalf("Scan(empty) failed: %v", err)
	}
	if !scanned2.IsNil() {
		t.Error("expected nil after scan of empty bytes")
	}
}

func TestUniqueness(t *testing.T) {
	a := id.NewCounterID()
	b := id.NewCounterID()
	if a.String() == b.String() {
		t.Errorf("two consecutive NewCounterID() calls returned the same ID: %q", a.String())
	}
}
