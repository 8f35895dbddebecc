// Package pipeline implements the four pipeline stages (create, validate,
// transform, status) over the collaborator contracts. Each stage is a
// short-lived invocation racing concurrent and redelivered invocations over
// the shared task record, so every status change goes through the conditional
// transition and converges on duplicates instead of failing.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/mosaicworks/stylize-api/internal/lifecycle"
	"github.com/mosaicworks/stylize-api/internal/platform/logger"
	"github.com/mosaicworks/stylize-api/internal/store"
)

// Blobs is the blob collaborator contract the stages consume.
type Blobs interface {
	// PresignUpload issues a time-limited upload credential for the source
	// blob keyed by task id.
	PresignUpload(ctx context.Context, key string) (*lifecycle.UploadCredential, error)

	// GetSource fetches an uploaded source blob.
	GetSource(ctx context.Context, key string) ([]byte, error)

	// PutDerived writes a derived blob. Derived keys are deterministic per
	// task, so concurrent writers produce identical bytes, not a conflict.
	PutDerived(ctx context.Context, key string, data []byte) error

	// PresignResult issues a fresh time-limited retrieval URL for a derived
	// blob. Never cached by callers.
	PresignResult(ctx context.Context, key string) (string, error)
}

// HandoffSender is the queue collaborator contract the validator consumes.
// Delivery downstream is at-least-once and possibly duplicated.
type HandoffSender interface {
	SendHandoff(ctx context.Context, msg lifecycle.HandoffMessage) error
}

// derivedKeyPrefix prefixes the result blob key of every task.
const derivedKeyPrefix = "converted-"

// DerivedKey returns the deterministic result blob key for a task.
func DerivedKey(taskID string) string {
	return derivedKeyPrefix + taskID
}

// transitionOutcome classifies what a conditional transition attempt did.
type transitionOutcome int

const (
	// transitionApplied means this invocation performed the transition.
	transitionApplied transitionOutcome = iota

	// transitionDuplicate means another invocation already applied the same
	// transition; converging on it is a no-op, not an error.
	transitionDuplicate

	// transitionSuperseded means the task is in some other status, either
	// further along the pipeline or in a different terminal state.
	transitionSuperseded
)

// applyTransition performs a conditional transition and, on a lost race,
// re-reads the record to classify the outcome. The record is returned for
// superseded outcomes so callers can decide what the race means for them.
func applyTransition(
	ctx context.Context,
	tasks lifecycle.TaskStore,
	taskID string,
	expected []lifecycle.Status,
	to lifecycle.Status,
	resultLocation string,
) (transitionOutcome, *lifecycle.Record, error) {
	err := tasks.Transition(ctx, taskID, expected, to, resultLocation)
	if err == nil {
		return transitionApplied, nil, nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return 0, nil, err
	}

	rec, err := tasks.Get(ctx, taskID)
	if err != nil {
		return 0, nil, fmt.Errorf("re-reading task %s after lost transition race: %w", taskID, err)
	}

	if rec.Status == to {
		if resultLocation != "" && rec.ResultLocation != resultLocation {
			// Derived keys are deterministic, so this indicates a bug or
			// manual interference, not a normal race. Converge anyway; the
			// stored record stays authoritative.
			logger.FromContext(ctx).Warn("duplicate transition with diverging result location",
				"task_id", taskID,
				"status", to,
				"stored_location", rec.ResultLocation,
				"attempted_location", resultLocation)
		}
		return transitionDuplicate, rec, nil
	}

	return transitionSuperseded, rec, nil
}
