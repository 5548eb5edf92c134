package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/collection"
	"github.com/xraph/jobrow/counter"
	"github.com/xraph/jobrow/ext"
	"github.com/xraph/jobrow/id"
	"github.com/xraph/jobrow/job"
	"github.com/xraph/jobrow/lock"
	"github.com/xraph/jobrow/queue"
)

var lastSeq atomic.Int64

// nextSeq returns a strictly increasing list position based on wall time.
func nextSeq() int64 {
	for {
		prev := lastSeq.Load()
		next := time.Now().UnixNano()
		if next <= prev {
			next = prev + 1
		}
		if lastSeq.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// Transaction buffers writes until Commit. It is not safe for concurrent
// use.
type Transaction struct {
	store       Store
	locks       *lock.Table
	signal      queue.Signal
	exts        *ext.Registry
	logger      *slog.Logger
	lockTimeout time.Duration
	now         func() time.Time

	ops      []Op
	queues   []string
	hashLock bool
	done     bool
}

// Option configures a Transaction.
type Option func(*Transaction)

// WithLocks sets the lock table used for hash range updates.
func WithLocks(t *lock.Table) Option {
	return func(tx *Transaction) { tx.locks = t }
}

// WithSignal sets the signal announced after queue rows commit.
func WithSignal(s queue.Signal) Option {
	return func(tx *Transaction) { tx.signal = s }
}

// WithExtensions sets the registry notified after commit.
func WithExtensions(r *ext.Registry) Option {
	return func(tx *Transaction) { tx.exts = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(tx *Transaction) { tx.logger = l }
}

// WithLockTimeout bounds the wait for the hash range lock. Default: 1m.
func WithLockTimeout(d time.Duration) Option {
	return func(tx *Transaction) { tx.lockTimeout = d }
}

// WithClock replaces time.Now for expirations.
func WithClock(now func() time.Time) Option {
	return func(tx *Transaction) { tx.now = now }
}

// New starts an empty transaction against store.
func New(store Store, opts ...Option) *Transaction {
	tx := &Transaction{
		store:       store,
		logger:      slog.Default(),
		lockTimeout: time.Minute,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(tx)
	}
	if tx.locks == nil {
		tx.locks = lock.NewTable()
	}
	return tx
}

// Ops returns the buffered operations.
func (tx *Transaction) Ops() []Op { return slices.Clone(tx.ops) }

// Len returns the number of buffered operations.
func (tx *Transaction) Len() int { return len(tx.ops) }

func (tx *Transaction) add(op Op) { tx.ops = append(tx.ops, op) }

func (tx *Transaction) expireAt(in time.Duration) *time.Time {
	if in <= 0 {
		return nil
	}
	at := tx.now().UTC().Add(in)
	return &at
}

// ──────────────────────────────────────────────────
// Jobs
// ──────────────────────────────────────────────────

// ExpireJob makes a job expire after in.
func (tx *Transaction) ExpireJob(jobID id.JobID, in time.Duration) {
	tx.add(ExpireJob{JobID: jobID, ExpireAt: tx.now().UTC().Add(in)})
}

// PersistJob removes a job's expiration.
func (tx *Transaction) PersistJob(jobID id.JobID) {
	tx.add(PersistJob{JobID: jobID})
}

// SetJobState records a transition and makes it the current state.
func (tx *Transaction) SetJobState(jobID id.JobID, name, reason string, data map[string]string) id.StateID {
	s := job.NewState(jobID, name, reason, data)
	tx.add(SetJobState{State: s})
	return s.ID
}

// AddJobState records a state in the history only.
func (tx *Transaction) AddJobState(jobID id.JobID, name, reason string, data map[string]string) id.StateID {
	s := job.NewState(jobID, name, reason, data)
	tx.add(AddJobState{State: s})
	return s.ID
}

// AddToQueue enqueues a job.
func (tx *Transaction) AddToQueue(queueName string, jobID id.JobID) {
	tx.add(AddToQueue{Entry: queue.NewEntry(queueName, jobID)})
	if !slices.Contains(tx.queues, queueName) {
		tx.queues = append(tx.queues, queueName)
	}
}

// ──────────────────────────────────────────────────
// Counters
// ──────────────────────────────────────────────────

// IncrementCounter adds one to key. A positive expireIn sets an expiration.
func (tx *Transaction) IncrementCounter(key string, expireIn time.Duration) {
	tx.counter(key, 1, expireIn)
}

// DecrementCounter subtracts one from key. A positive expireIn sets an
// expiration.
func (tx *Transaction) DecrementCounter(key string, expireIn time.Duration) {
	tx.counter(key, -1, expireIn)
}

func (tx *Transaction) counter(key string, delta int64, expireIn time.Duration) {
	tx.add(IncrementCounter{Counter: &counter.Counter{
		ID:       id.NewCounterID(),
		Key:      key,
		Value:    delta,
		ExpireAt: tx.expireAt(expireIn),
	}})
}

// ──────────────────────────────────────────────────
// Sets
// ──────────────────────────────────────────────────

// AddToSet adds value to a set, or updates its score.
func (tx *Transaction) AddToSet(key, value string, score float64) {
	tx.add(AddToSet{Member: &collection.SetMember{
		ID:    id.NewSetID(),
		Key:   key,
		Value: value,
		Score: score,
	}})
}

// RemoveFromSet removes value from a set.
func (tx *Transaction) RemoveFromSet(key, value string) {
	tx.add(RemoveFromSet{Key: key, Value: value})
}

// ──────────────────────────────────────────────────
// Lists
// ──────────────────────────────────────────────────

// InsertToList appends value to a list.
func (tx *Transaction) InsertToList(key, value string) {
	tx.add(InsertToList{Item: &collection.ListItem{
		ID:    id.NewListID(),
		Key:   key,
		Seq:   nextSeq(),
		Value: value,
	}})
}

// RemoveFromList removes every occurrence of value.
func (tx *Transaction) RemoveFromList(key, value string) {
	tx.add(RemoveFromList{Key: key, Value: value})
}

// TrimList keeps the items at positions start through end.
func (tx *Transaction) TrimList(key string, start, end int) {
	tx.add(TrimList{Key: key, Start: start, End: end})
}

// ──────────────────────────────────────────────────
// Hashes
// ──────────────────────────────────────────────────

// SetRangeInHash writes fields into a hash. The commit holds the
// lock.ResourceSetRangeInHash lock.
func (tx *Transaction) SetRangeInHash(key string, fields map[string]string) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)

	rows := make([]*collection.HashField, 0, len(names))
	for _, name := range names {
		rows = append(rows, &collection.HashField{
			ID:    id.NewHashID(),
			Key:   key,
			Field: name,
			Value: fields[name],
		})
	}
	tx.add(SetRangeInHash{Key: key, Fields: rows})
	tx.hashLock = true
}

// RemoveHash deletes a hash.
func (tx *Transaction) RemoveHash(key string) {
	tx.add(RemoveHash{Key: key})
}

// ──────────────────────────────────────────────────
// Collection expirations
// ──────────────────────────────────────────────────

// ExpireHash makes every field of a hash expire after in.
func (tx *Transaction) ExpireHash(key string, in time.Duration) {
	tx.expireCollection(collection.KindHash, key, in)
}

// ExpireSet makes every member of a set expire after in.
func (tx *Transaction) ExpireSet(key string, in time.Duration) {
	tx.expireCollection(collection.KindSet, key, in)
}

// ExpireList makes every item of a list expire after in.
func (tx *Transaction) ExpireList(key string, in time.Duration) {
	tx.expireCollection(collection.KindList, key, in)
}

// PersistHash clears the expiration of a hash.
func (tx *Transaction) PersistHash(key string) {
	tx.add(ExpireCollection{Kind: collection.KindHash, Key: key})
}

// PersistSet clears the expiration of a set.
func (tx *Transaction) PersistSet(key string) {
	tx.add(ExpireCollection{Kind: collection.KindSet, Key: key})
}

// PersistList clears the expiration of a list.
func (tx *Transaction) PersistList(key string) {
	tx.add(ExpireCollection{Kind: collection.KindList, Key: key})
}

func (tx *Transaction) expireCollection(kind collection.Kind, key string, in time.Duration) {
	at := tx.now().UTC().Add(in)
	tx.add(ExpireCollection{Kind: kind, Key: key, ExpireAt: &at})
}

// ──────────────────────────────────────────────────
// Commit
// ──────────────────────────────────────────────────

// Commit applies every buffered operation atomically. A transaction can be
// committed once.
func (tx *Transaction) Commit(ctx context.Context) error {
	if tx.done {
		return jobrow.ErrTransactionDone
	}
	if len(tx.ops) == 0 {
		tx.done = true
		return nil
	}

	if tx.hashLock {
		h, err := tx.locks.Acquire(ctx, lock.ResourceSetRangeInHash, tx.lockTimeout)
		if err != nil {
			if !errors.Is(err, jobrow.ErrLockTimeout) {
				return err
			}
			tx.logger.Warn("hash range lock not acquired, committing without exclusion")
		}
		defer h.Release()
	}

	if err := tx.store.CommitTransaction(ctx, tx.ops); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	tx.done = true

	tx.exts.EmitTransactionCommitted(ctx, len(tx.ops))
	if tx.signal != nil {
		for _, q := range tx.queues {
			if err := tx.signal.Notify(ctx, q); err != nil {
				tx.logger.Warn("queue signal failed",
					slog.String("queue", q),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	return nil
}
