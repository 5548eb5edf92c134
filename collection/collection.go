package collection

import (
	"time"

	"github.com/xraph/jobrow/id"
)

// Kind names a collection type.
type Kind string

const (
	KindHash Kind = "Hash"
	KindList Kind = "List"
	KindSet  Kind = "Set"
)

// HashField is one field of a hash.
type HashField struct {
	ID       id.HashID  `json:"id"`
	Key      string     `json:"key"`
	Field    string     `json:"field"`
	Value    string     `json:"value"`
	ExpireAt *time.Time `json:"expire_at,omitempty"`
}

// ListItem is one element of a list. Seq orders items by insertion.
type ListItem struct {
	ID       id.ListID  `json:"id"`
	Key      string     `json:"key"`
	Seq      int64      `json:"seq"`
	Value    string     `json:"value"`
	ExpireAt *time.Time `json:"expire_at,omitempty"`
}

// SetMember is one member of a set. Value is unique per key.
type SetMember struct {
	ID       id.SetID   `json:"id"`
	Key      string     `json:"key"`
	Value    string     `json:"value"`
	Score    float64    `json:"score"`
	ExpireAt *time.Time `json:"expire_at,omitempty"`
}

// NoTTL is reported by TTL reads for keys without an expiration.
const NoTTL = -time.Second

// TTL converts the earliest expiration of a key into a remaining duration.
func TTL(earliest *time.Time, now time.Time) time.Duration {
	if earliest == nil {
		return NoTTL
	}
	return earliest.Sub(now)
}

// Window converts inclusive [start, end] indexes into offset and limit.
// A negative or inverted range yields a zero limit.
func Window(start, end int) (offset, limit int) {
	if start < 0 {
		start = 0
	}
	if end < start {
		return start, 0
	}
	return start, end - start + 1
}
