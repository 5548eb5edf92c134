package audithook_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	ah "github.com/xraph/jobrow/audit_hook"
	"github.com/xraph/jobrow/ext"
	"github.com/xraph/jobrow/id"
)

// ── Mock recorder ────────────────────────────────────

// mockRecorder captures audit events for verification.
type mockRecorder struct {
	mu     sync.Mutex
	events []*ah.AuditEvent
}

func (m *mockRecorder) Record(_ context.Context, evt *ah.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockRecorder) last() *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockRecorder) findByAction(action string) *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, evt := range m.events {
		if evt.Action == action {
			return evt
		}
	}
	return nil
}

// ── Tests ────────────────────────────────────────────

func TestExtension_Name(t *testing.T) {
	e := ah.New(&mockRecorder{})
	if e.Name() != "audit-hook" {
		t.Errorf("expected name %q, got %q", "audit-hook", e.Name())
	}
}

func TestExtension_Hooks(t *testing.T) {
	jobID := id.NewJobID()
	renewErr := errors.New("lease taken over")

	tests := []struct {
		name       string
		emit       func(ctx context.Context, e *ah.Extension) error
		action     string
		severity   string
		outcome    string
		resource   string
		resourceID string
		metaKey    string
		metaValue  any
	}{
		{
			name: "lease acquired",
			emit: func(ctx context.Context, e *ah.Extension) error {
				return e.OnLeaseAcquired(ctx, "default", jobID)
			},
			action: ah.ActionLeaseAcquired, severity: ah.SeverityInfo, outcome: ah.OutcomeSuccess,
			resource: ah.ResourceJob, resourceID: jobID.String(), metaKey: "queue", metaValue: "default",
		},
		{
			name: "lease released",
			emit: func(ctx context.Context, e *ah.Extension) error {
				return e.OnLeaseReleased(ctx, "critical", jobID)
			},
			action: ah.ActionLeaseReleased, severity: ah.SeverityInfo, outcome: ah.OutcomeSuccess,
			resource: ah.ResourceJob, resourceID: jobID.String(), metaKey: "queue", metaValue: "critical",
		},
		{
			name: "lease requeued",
			emit: func(ctx context.Context, e *ah.Extension) error {
				return e.OnLeaseRequeued(ctx, "default", jobID)
			},
			action: ah.ActionLeaseRequeued, severity: ah.SeverityWarning, outcome: ah.OutcomeSuccess,
			resource: ah.ResourceJob, resourceID: jobID.String(), metaKey: "queue", metaValue: "default",
		},
		{
			name: "lease renew failed",
			emit: func(ctx context.Context, e *ah.Extension) error {
				return e.OnLeaseRenewFailed(ctx, "default", jobID, renewErr)
			},
			action: ah.ActionLeaseRenewFailed, severity: ah.SeverityCritical, outcome: ah.OutcomeFailure,
			resource: ah.ResourceJob, resourceID: jobID.String(), metaKey: "error", metaValue: renewErr.Error(),
		},
		{
			name: "counters folded",
			emit: func(ctx context.Context, e *ah.Extension) error {
				return e.OnCountersFolded(ctx, 120, 4)
			},
			action: ah.ActionCountersFolded, severity: ah.SeverityInfo, outcome: ah.OutcomeSuccess,
			resource: ah.ResourceCounter, metaKey: "rows", metaValue: 120,
		},
		{
			name: "records expired",
			emit: func(ctx context.Context, e *ah.Extension) error {
				return e.OnRecordsExpired(ctx, "job", 7)
			},
			action: ah.ActionRecordsExpired, severity: ah.SeverityInfo, outcome: ah.OutcomeSuccess,
			resource: ah.ResourceRecord, resourceID: "job", metaKey: "removed", metaValue: 7,
		},
		{
			name: "transaction committed",
			emit: func(ctx context.Context, e *ah.Extension) error {
				return e.OnTransactionCommitted(ctx, 3)
			},
			action: ah.ActionTransactionCommitted, severity: ah.SeverityInfo, outcome: ah.OutcomeSuccess,
			resource: ah.ResourceTransaction, metaKey: "ops", metaValue: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &mockRecorder{}
			e := ah.New(rec)

			if err := tt.emit(context.Background(), e); err != nil {
				t.Fatalf("hook: %v", err)
			}

			evt := rec.last()
			if evt == nil {
				t.Fatal("no event recorded")
			}
			if evt.Action != tt.action {
				t.Errorf("Action: want %q, got %q", tt.action, evt.Action)
			}
			if evt.Severity != tt.severity {
				t.Errorf("Severity: want %q, got %q", tt.severity, evt.Severity)
			}
			if evt.Outcome != tt.outcome {
				t.Errorf("Outcome: want %q, got %q", tt.outcome, evt.Outcome)
			}
			if evt.Resource != tt.resource {
				t.Errorf("Resource: want %q, got %q", tt.resource, evt.Resource)
			}
			if evt.ResourceID != tt.resourceID {
				t.Errorf("ResourceID: want %q, got %q", tt.resourceID, evt.ResourceID)
			}
			if evt.Metadata[tt.metaKey] != tt.metaValue {
				t.Errorf("Metadata[%s]: want %v, got %v", tt.metaKey, tt.metaValue, evt.Metadata[tt.metaKey])
			}
		})
	}
}

func TestExtension_RenewFailedReason(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnLeaseRenewFailed(context.Background(), "default", id.NewJobID(), errors.New("gone")); err != nil {
		t.Fatalf("OnLeaseRenewFailed: %v", err)
	}
	if got := rec.last().Reason; got != "gone" {
		t.Errorf("Reason: want %q, got %q", "gone", got)
	}
}

func TestExtension_WithActions_FiltersDisabled(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec, ah.WithActions(ah.ActionLeaseRequeued, ah.ActionRecordsExpired))

	ctx := context.Background()
	jobID := id.NewJobID()

	if err := e.OnLeaseAcquired(ctx, "default", jobID); err != nil {
		t.Fatalf("OnLeaseAcquired: %v", err)
	}
	if rec.count() != 0 {
		t.Errorf("expected 0 events (acquired disabled), got %d", rec.count())
	}

	if err := e.OnLeaseRequeued(ctx, "default", jobID); err != nil {
		t.Fatalf("OnLeaseRequeued: %v", err)
	}
	if rec.count() != 1 {
		t.Errorf("expected 1 event (requeued enabled), got %d", rec.count())
	}

	if err := e.OnRecordsExpired(ctx, "set", 2); err != nil {
		t.Fatalf("OnRecordsExpired: %v", err)
	}
	if rec.count() != 2 {
		t.Errorf("expected 2 events, got %d", rec.count())
	}
}

func TestExtension_RecorderError_DoesNotPropagate(t *testing.T) {
	failing := ah.RecorderFunc(func(_ context.Context, _ *ah.AuditEvent) error {
		return errors.New("audit backend down")
	})

	e := ah.New(failing)
	if err := e.OnLeaseReleased(context.Background(), "default", id.NewJobID()); err != nil {
		t.Fatalf("expected no error (audit failure swallowed), got: %v", err)
	}
}

// ── Registry integration test ────────────────────────

func TestExtension_ViaRegistry(t *testing.T) {
	rec := &mockRecorder{}
	reg := ext.NewRegistry(slog.Default())
	reg.Register(ah.New(rec))

	ctx := context.Background()
	jobID := id.NewJobID()

	reg.EmitLeaseAcquired(ctx, "default", jobID)
	reg.EmitLeaseReleased(ctx, "default", jobID)
	reg.EmitLeaseRequeued(ctx, "default", jobID)
	reg.EmitLeaseRenewFailed(ctx, "default", jobID, errors.New("stale"))
	reg.EmitCountersFolded(ctx, 10, 2)
	reg.EmitRecordsExpired(ctx, "hash", 5)
	reg.EmitTransactionCommitted(ctx, 4)

	all := ah.AllActions()
	if rec.count() != len(all) {
		t.Fatalf("expected %d events, got %d", len(all), rec.count())
	}
	for _, action := range all {
		if rec.findByAction(action) == nil {
			t.Errorf("missing event for action %q", action)
		}
	}
}
