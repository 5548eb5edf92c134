package txn

import "context"

// Store applies a batch of operations atomically, in order. Either every
// operation takes effect or none does.
type Store interface {
	CommitTransaction(ctx context.Context, ops []Op) error
}
