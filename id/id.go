// Package id defines TypeID-based identity types for every stored row.
//
// Every row uses a single ID struct with a prefix that identifies the row
// kind. IDs are K-sortable (UUIDv7-based), globally unique, and URL-safe in
// the format "prefix_suffix". They are generated client-side when a row is
// created.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all row kinds.
const (
	PrefixJob        Prefix = "job"
	PrefixParameter  Prefix = "jparam"
	PrefixState      Prefix = "jstate"
	PrefixQueueEntry Prefix = "jq"
	PrefixCounter    Prefix = "ctr"
	PrefixAggregate  Prefix = "actr"
	PrefixHash       Prefix = "hash"
	PrefixList       Prefix = "list"
	PrefixSet        Prefix = "set"
)

// ID is the primary identifier type for all rows.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "job_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// MustParseWithPrefix is like ParseWithPrefix but panics on error.
func MustParseWithPrefix(s string, expected Prefix) ID {
	parsed, err := ParseWithPrefix(s, expected)
	if err != nil {
		panic(fmt.Sprintf("id: must parse with prefix %q: %v", expected, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Row kind aliases
// ──────────────────────────────────────────────────

// JobID identifies a job row (prefix: "job").
type JobID = ID

// ParameterID identifies a job parameter row (prefix: "jparam").
type ParameterID = ID

// StateID identifies a state history row (prefix: "jstate").
type StateID = ID

// EntryID identifies a queue row (prefix: "jq").
type EntryID = ID

// CounterID identifies a raw counter row (prefix: "ctr").
type CounterID = ID

// AggregateID identifies an aggregated counter row (prefix: "actr").
type AggregateID = ID

// HashID identifies a hash field row (prefix: "hash").
type HashID = ID

// ListID identifies a list item row (prefix: "list").
type ListID = ID

// SetID identifies a set member row (prefix: "set").
type SetID = ID

// AnyID is a type alias that accepts any valid prefix.
type AnyID = ID

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

func NewJobID() ID       { return New(PrefixJob) }
func NewParameterID() ID { return New(PrefixParameter) }
func NewStateID() ID     { return New(PrefixState) }
func NewEntryID() ID     { return New(PrefixQueueEntry) }
func NewCounterID() ID   { return New(PrefixCounter) }
func NewAggregateID() ID { return New(PrefixAggregate) }
func NewHashID() ID      { return New(PrefixHash) }
func NewListID() ID      { return New(PrefixList) }
func NewSetID() ID       { return New(PrefixSet) }

// ──────────────────────────────────────────────────
// Convenience parsers
// ──────────────────────────────────────────────────

// ParseJobID parses a string and validates the "job" prefix.
func ParseJobID(s string) (ID, error) { return ParseWithPrefix(s, PrefixJob) }

// ParseStateID parses a string and validates the "jstate" prefix.
func ParseStateID(s string) (ID, error) { return ParseWithPrefix(s, PrefixState) }

// ParseEntryID parses a string and validates the "jq" prefix.
func ParseEntryID(s string) (ID, error) { return ParseWithPrefix(s, PrefixQueueEntry) }

// ParseCounterID parses a string and validates the "ctr" prefix.
func ParseCounterID(s string) (ID, error) { return ParseWithPrefix(s, PrefixCounter) }

// ParseAny parses a string into an ID without type checking the prefix.
func ParseAny(s string) (ID, error) { return Parse(s) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// Compare orders IDs by their string form, which is creation order for IDs
// generated in different milliseconds. The Nil ID sorts first.
func (i ID) Compare(other ID) int {
	a, b := i.String(), other.String()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
