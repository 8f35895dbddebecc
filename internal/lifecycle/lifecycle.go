// Package lifecycle defines the task record, its status state machine, and the
// TaskStore contract shared by every pipeline stage. The state machine is fixed
// to this one pipeline shape:
//
//	NEW -> PROCESSING -> DONE
//	NEW -> INVALID
//	PROCESSING -> FAILED
//
// INVALID, DONE and FAILED are terminal. Because every stage runs under
// at-least-once triggering, re-applying a transition that has already happened
// must converge to a no-op, never an error.
package lifecycle

import (
	"context"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

// Possible task status values, surfaced verbatim to status queries.
const (
	StatusNew        Status = "NEW"
	StatusProcessing Status = "PROCESSING"
	StatusDone       Status = "DONE"
	StatusInvalid    Status = "INVALID"
	StatusFailed     Status = "FAILED"
)

// transitions is the full set of legal forward edges.
var transitions = map[Status][]Status{
	StatusNew:        {StatusProcessing, StatusInvalid},
	StatusProcessing: {StatusDone, StatusFailed},
}

// CanTransition reports whether moving from one status to another is a legal
// forward edge of the state machine. Re-asserting the current status is not a
// transition; idempotent re-application is handled by the store contract.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0 && s != ""
}

// Rank orders statuses along the pipeline so callers can tell "already
// advanced past the state I expected" apart from a genuine conflict. A status
// never moves to a lower rank.
func (s Status) Rank() int {
	switch s {
	case StatusNew:
		return 0
	case StatusProcessing:
		return 1
	case StatusDone, StatusInvalid, StatusFailed:
		return 2
	default:
		return -1
	}
}

// Record is the durable task record, the single source of truth for lifecycle
// state. Exactly one record exists per task id; the record is never deleted by
// the pipeline.
type Record struct {
	TaskID string `json:"task_id"`
	Status Status `json:"status"`

	// ResultLocation is the derived blob key. Set if and only if Status is
	// DONE. Retrieval credentials are recomputed from it on every status read
	// and never persisted.
	ResultLocation string `json:"result_location,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HandoffMessage is the queue payload correlating a validated task to its
// transform step. It only exists in transit and may be delivered more than
// once.
type HandoffMessage struct {
	TaskID string `json:"task_id"`
}

// UploadCredential is a time-limited capability authorizing one direct upload
// of the source blob, keyed by task id. It is returned to the caller at task
// creation and never stored.
type UploadCredential struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
}

// TaskStore is the durable record store contract. Implementations must make
// Transition a conditional write: the update applies only when the current
// status is in the expected set, and a failed condition surfaces as
// store.ErrConflict so the caller can re-read and converge.
type TaskStore interface {
	// Create inserts a new record with status NEW. Returns
	// store.ErrAlreadyExists if the id is already registered.
	Create(ctx context.Context, taskID string) error

	// Get returns the current record or store.ErrNotFound.
	Get(ctx context.Context, taskID string) (*Record, error)

	// Transition atomically moves the task to the given status, setting
	// ResultLocation when non-empty, but only if the current status is in the
	// expected set. A failed condition returns store.ErrConflict; it is never
	// a blind overwrite.
	Transition(ctx context.Context, taskID string, expected []Status, to Status, resultLocation string) error
}
