package expire

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/jobrow"
)

// Kind names an expirable row kind.
type Kind string

// Expirable kinds.
const (
	KindAggregatedCounter Kind = "AggregatedCounter"
	KindJob               Kind = "Job"
	KindList              Kind = "List"
	KindSet               Kind = "Set"
	KindHash              Kind = "Hash"
)

// Kinds lists every expirable kind in sweep order.
var Kinds = []Kind{KindAggregatedCounter, KindJob, KindList, KindSet, KindHash}

// Store defines the purge contract for expirable rows.
type Store interface {
	// PurgeExpired deletes up to limit rows of kind whose ExpireAt is before
	// the given time, earliest expiration first, and returns how many were
	// deleted. Purging jobs also removes their parameters, states and queue
	// rows.
	PurgeExpired(ctx context.Context, kind Kind, before time.Time, limit int) (int, error)
}

// PurgeFunc deletes up to limit expired rows of one kind.
type PurgeFunc func(ctx context.Context, before time.Time, limit int) (int, error)

// Registration pairs a kind with its purge function.
type Registration struct {
	Kind  Kind
	Purge PurgeFunc
}

// Registry is the ordered list of expirable kinds.
type Registry struct {
	entries []Registration
}

// NewRegistry builds a registry from explicit registrations. Kinds must be
// unique.
func NewRegistry(regs ...Registration) (*Registry, error) {
	seen := make(map[Kind]struct{}, len(regs))
	for _, r := range regs {
		if r.Kind == "" || r.Purge == nil {
			return nil, fmt.Errorf("expire: incomplete registration for kind %q", r.Kind)
		}
		if _, dup := seen[r.Kind]; dup {
			return nil, fmt.Errorf("expire: kind %q registered twice", r.Kind)
		}
		seen[r.Kind] = struct{}{}
	}
	return &Registry{entries: append([]Registration(nil), regs...)}, nil
}

// StoreRegistry registers every kind in Kinds against s.
func StoreRegistry(s Store) *Registry {
	regs := make([]Registration, 0, len(Kinds))
	for _, k := range Kinds {
		regs = append(regs, Registration{Kind: k, Purge: bind(s, k)})
	}
	return &Registry{entries: regs}
}

func bind(s Store, k Kind) PurgeFunc {
	return func(ctx context.Context, before time.Time, limit int) (int, error) {
		return s.PurgeExpired(ctx, k, before, limit)
	}
}

// Entries returns the registrations in sweep order.
func (r *Registry) Entries() []Registration {
	return append([]Registration(nil), r.entries...)
}

// Lookup returns the purge function of kind.
func (r *Registry) Lookup(kind Kind) (PurgeFunc, error) {
	for _, e := range r.entries {
		if e.Kind == kind {
			return e.Purge, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", jobrow.ErrUnknownKind, kind)
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", jobrow.ErrUnknownKind, s)
}
