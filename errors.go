package jobrow

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("jobrow: no store configured")
	ErrStoreClosed     = errors.New("jobrow: store closed")
	ErrMigrationFailed = errors.New("jobrow: migration failed")

	// Configuration errors.
	ErrInvalidConfig = errors.New("jobrow: invalid configuration")

	// Not found errors.
	ErrJobNotFound       = errors.New("jobrow: job not found")
	ErrStateNotFound     = errors.New("jobrow: state not found")
	ErrParameterNotFound = errors.New("jobrow: job parameter not found")
	ErrServerNotFound    = errors.New("jobrow: server not found")
	ErrCounterNotFound   = errors.New("jobrow: counter not found")
	ErrHashFieldNotFound = errors.New("jobrow: hash field not found")
	ErrSetEmpty          = errors.New("jobrow: no set member in score range")

	// Server errors.
	ErrServerIDRequired = errors.New("jobrow: server id is required")

	// Counter errors.
	ErrCountersStale = errors.New("jobrow: counters already folded")

	// Lock errors.
	ErrLockTimeout     = errors.New("jobrow: lock timeout")
	ErrLockTableClosed = errors.New("jobrow: lock table closed")

	// Queue errors.
	ErrEmptyQueueList = errors.New("jobrow: at least one queue name is required")
	ErrLeaseClosed    = errors.New("jobrow: lease already released or requeued")

	// Transaction errors.
	ErrTransactionDone = errors.New("jobrow: transaction already committed")

	// Payload errors.
	ErrInvalidInvocation = errors.New("jobrow: invalid invocation data")

	// Expiration errors.
	ErrUnknownKind = errors.New("jobrow: unknown expirable kind")
)
