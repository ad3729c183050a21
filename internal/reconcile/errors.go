package reconcile

import "errors"

var (
	// ErrNotFound is returned by CheckNow for an id with no stored entry.
	ErrNotFound = errors.New("operation not found")

	// ErrInvalidOperation is returned by Submit for an operation that is
	// not a well-formed pending entry.
	ErrInvalidOperation = errors.New("invalid operation")
)
