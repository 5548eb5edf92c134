package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/xraph/jobrow/ext"
	"github.com/xraph/jobrow/id"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnLeaseAcquired(_ context.Context, _ string, _ id.JobID) error {
	e.calls = append(e.calls, "OnLeaseAcquired")
	return nil
}

func (e *allHooksExt) OnLeaseReleased(_ context.Context, _ string, _ id.JobID) error {
	e.calls = append(e.calls, "OnLeaseReleased")
	return nil
}

func (e *allHooksExt) OnLeaseRequeued(_ context.Context, _ string, _ id.JobID) error {
	e.calls = append(e.calls, "OnLeaseRequeued")
	return nil
}

func (e *allHooksExt) OnLeaseRenewFailed(_ context.Context, _ string, _ id.JobID, _ error) error {
	e.calls = append(e.calls, "OnLeaseRenewFailed")
	return nil
}

func (e *allHooksExt) OnCountersFolded(_ context.Context, _, _ int) error {
	e.calls = append(e.calls, "OnCountersFolded")
	return nil
}

func (e *allHooksExt) OnRecordsExpired(_ context.Context, _ string, _ int) error {
	e.calls = append(e.calls, "OnRecordsExpired")
	return nil
}

func (e *allHooksExt) OnTransactionCommitted(_ context.Context, _ int) error {
	e.calls = append(e.calls, "OnTransactionCommitted")
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// expiredOnlyExt only implements RecordsExpired.
type expiredOnlyExt struct {
	kinds []string
}

func (e *expiredOnlyExt) Name() string { return "expired-only" }

func (e *expiredOnlyExt) OnRecordsExpired(_ context.Context, kind string, _ int) error {
	e.kinds = append(e.kinds, kind)
	return nil
}

// failingExt returns errors from its hook.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnShutdown(_ context.Context) error {
	return errors.New("boom")
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	jobID := id.NewJobID()
	r.EmitLeaseAcquired(ctx, "default", jobID)
	r.EmitLeaseReleased(ctx, "default", jobID)
	r.EmitLeaseRequeued(ctx, "default", jobID)
	r.EmitLeaseRenewFailed(ctx, "default", jobID, errors.New("x"))
	r.EmitCountersFolded(ctx, 3, 1)
	r.EmitRecordsExpired(ctx, "Job", 10)
	r.EmitTransactionCommitted(ctx, 2)
	r.EmitShutdown(ctx)

	want := []string{
		"OnLeaseAcquired", "OnLeaseReleased", "OnLeaseRequeued", "OnLeaseRenewFailed",
		"OnCountersFolded", "OnRecordsExpired", "OnTransactionCommitted", "OnShutdown",
	}
	if len(all.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", all.calls, want)
	}
	for i := range want {
		if all.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, all.calls[i], want[i])
		}
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	only := &expiredOnlyExt{}
	r.Register(only)

	ctx := context.Background()
	r.EmitLeaseAcquired(ctx, "q", id.NewJobID())
	r.EmitRecordsExpired(ctx, "Set", 1)

	if len(only.kinds) != 1 || only.kinds[0] != "Set" {
		t.Errorf("kinds = %v, want [Set]", only.kinds)
	}
	if got := len(r.Extensions()); got != 1 {
		t.Errorf("Extensions() len = %d, want 1", got)
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(_ *testing.T) {
	r := ext.NewRegistry(slog.Default())
	r.Register(&failingExt{})
	r.EmitShutdown(context.Background())
}

func TestRegistry_NilRegistryNoOp(t *testing.T) {
	var r *ext.Registry
	ctx := context.Background()
	r.EmitLeaseAcquired(ctx, "q", id.NewJobID())
	r.EmitCountersFolded(ctx, 1, 1)
	r.EmitShutdown(ctx)
	if r.Extensions() != nil {
		t.Error("nil registry should report no extensions")
	}
}

func TestRegistry_MultipleExtensionsOrderPreserved(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	a, b := &expiredOnlyExt{}, &expiredOnlyExt{}
	r.Register(a)
	r.Register(b)

	r.EmitRecordsExpired(context.Background(), "Hash", 5)
	if len(a.kinds) != 1 || len(b.kinds) != 1 {
		t.Errorf("both extensions should be notified: a=%v b=%v", a.kinds, b.kinds)
	}
}
