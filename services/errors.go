package services

import "errors"

// Error taxonomy surfaced to callers. Controllers map these onto HTTP
// statuses; everything else is treated as an internal error.
var (
	// ErrNotFound: the referenced item does not exist or does not belong to
	// the claimed owner. Never retried.
	ErrNotFound = errors.New("not found")

	// ErrInvariantViolation: the operation would break a tree invariant
	// (move into a non-folder, reference a folder, second root, cycle).
	// Rejected synchronously, never persisted.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrStorageUnavailable: an external asset-store call failed. Synchronous
	// operations surface it to the caller; deferred cleanup retries it.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrJobExists: a pending deletion job with the same idempotency key
	// already exists. The scheduler treats this as a successful no-op.
	ErrJobExists = errors.New("job already scheduled")
)
