package store

import "errors"

// Common store errors used across all TaskStore implementations.
var (
	// ErrNotFound is returned when the requested task does not exist in the store.
	ErrNotFound = errors.New("task not found")

	// ErrAlreadyExists is returned when creating a task whose id is already
	// registered. Task ids are 128-bit random values, so a collision is treated
	// as fatal rather than retried.
	ErrAlreadyExists = errors.New("task already exists")

	// ErrConflict is returned when a conditional transition finds the task in a
	// status outside the expected set. Callers decide whether the lost race is a
	// benign duplicate (the intended outcome is already applied) or a real
	// conflict by re-reading the record.
	ErrConflict = errors.New("task status conflict")

	// ErrUnavailable wraps transient collaborator failures (store, blob, queue).
	// Work that fails with ErrUnavailable is safe to retry via redelivery.
	ErrUnavailable = errors.New("collaborator unavailable")
)

// IsRetryable reports whether the error is a transient collaborator failure
// that should be resolved by the triggering infrastructure's redelivery.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
