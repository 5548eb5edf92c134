package jobrow

import "github.com/xraph/jobrow/id"

// ID is the primary identifier type for all stored rows.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
