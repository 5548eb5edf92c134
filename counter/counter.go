package counter

import (
	"time"

	"github.com/xraph/jobrow/id"
)

// Counter is one raw delta for a key.
type Counter struct {
	ID       id.CounterID `json:"id"`
	Key      string       `json:"key"`
	Value    int64        `json:"value"`
	ExpireAt *time.Time   `json:"expire_at,omitempty"`
}

// Aggregate is the folded total for a key. Key is unique.
type Aggregate struct {
	ID       id.AggregateID `json:"id"`
	Key      string         `json:"key"`
	Value    int64          `json:"value"`
	ExpireAt *time.Time     `json:"expire_at,omitempty"`
}

// Fold is the summed contribution of a batch of counters to one key.
type Fold struct {
	Key      string
	Delta    int64
	ExpireAt *time.Time
}

// LaterExpiry returns the later of two optional expirations. A missing
// expiration never wins over a present one.
func LaterExpiry(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.After(*a):
		return b
	}
	return a
}

// Apply adds f to agg in place.
func (f Fold) Apply(agg *Aggregate) {
	agg.Value += f.Delta
	agg.ExpireAt = LaterExpiry(agg.ExpireAt, f.ExpireAt)
}

// Group sums counters per key. Folds come back in first-seen key order
// together with the IDs of every counter consumed.
func Group(counters []*Counter) ([]Fold, []id.CounterID) {
	index := make(map[string]int, len(counters))
	folds := make([]Fold, 0)
	ids := make([]id.CounterID, 0, len(counters))

	for _, c := range counters {
		ids = append(ids, c.ID)
		i, ok := index[c.Key]
		if !ok {
			i = len(folds)
			index[c.Key] = i
			folds = append(folds, Fold{Key: c.Key})
		}
		folds[i].Delta += c.Value
		folds[i].ExpireAt = LaterExpiry(folds[i].ExpireAt, c.ExpireAt)
	}
	return folds, ids
}
