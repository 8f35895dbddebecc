package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/mosaicworks/stylize-api/internal/lifecycle"
	"github.com/mosaicworks/stylize-api/internal/metrics"
	"github.com/mosaicworks/stylize-api/internal/platform/logger"
	"github.com/mosaicworks/stylize-api/internal/store"
	"github.com/mosaicworks/stylize-api/internal/transform"
)

// Transformer consumes handoff messages, produces the derived blob, and
// settles the task in a terminal status.
type Transformer struct {
	tasks      lifecycle.TaskStore
	blobs      Blobs
	capability transform.Capability
}

// NewTransformer creates a Transformer around the given stylization
// capability.
func NewTransformer(tasks lifecycle.TaskStore, blobs Blobs, capability transform.Capability) *Transformer {
	return &Transformer{tasks: tasks, blobs: blobs, capability: capability}
}

// Process handles one handoff message. A returned error means the message
// should be redelivered; a nil return settles it. Redelivery of an already
// settled task converges to a no-op.
func (t *Transformer) Process(ctx context.Context, taskID string) error {
	log := logger.FromContext(ctx).With("task_id", taskID)
	ctx = logger.WithLogger(ctx, log)

	rec, err := t.tasks.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The handoff can only have been sent for a registered task, so
			// the record is lagging behind; redelivery retries the read.
			return fmt.Errorf("task record not yet visible: %w", err)
		}
		return err
	}

	switch rec.Status {
	case lifecycle.StatusDone:
		// Late redelivery after a successful prior processing. The stored
		// result is authoritative; nothing to redo.
		log.Info("duplicate handoff for completed task")
		metrics.TransformOutcomes.WithLabelValues("duplicate").Inc()
		return nil
	case lifecycle.StatusInvalid, lifecycle.StatusFailed:
		log.Warn("handoff for task settled in terminal status", "status", rec.Status)
		metrics.TransformOutcomes.WithLabelValues("duplicate").Inc()
		return nil
	case lifecycle.StatusNew:
		// The handoff outran the validator's PROCESSING transition.
		// Tolerated by retrying the read via redelivery.
		metrics.TransformOutcomes.WithLabelValues("retried").Inc()
		return fmt.Errorf("task %s still NEW, transition not yet visible", taskID)
	}

	src, err := t.blobs.GetSource(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to fetch source blob: %w", err)
	}

	derived, err := t.capability.Transform(ctx, src)
	if err != nil {
		if errors.Is(err, transform.ErrTransform) {
			return t.fail(ctx, taskID, err)
		}
		// Cancellation or other transient fault: leave the task in
		// PROCESSING and let redelivery retry.
		return fmt.Errorf("transform interrupted: %w", err)
	}

	derivedKey := DerivedKey(taskID)
	if err := t.blobs.PutDerived(ctx, derivedKey, derived); err != nil {
		return fmt.Errorf("failed to store derived blob: %w", err)
	}

	// Issue a retrieval credential up front, as creation-time confirmation
	// that the result is retrievable. Only the key is persisted; status reads
	// recompute a fresh credential every time.
	if _, err := t.blobs.PresignResult(ctx, derivedKey); err != nil {
		return fmt.Errorf("failed to presign result: %w", err)
	}

	outcome, _, err := applyTransition(ctx, t.tasks, taskID,
		[]lifecycle.Status{lifecycle.StatusProcessing}, lifecycle.StatusDone, derivedKey)
	if err != nil {
		return err
	}
	if outcome == transitionApplied {
		log.Info("task completed", "result_location", derivedKey, "derived_bytes", len(derived))
	} else {
		// A concurrent invocation settled the task first. The derived blob
		// write was byte-identical, so nothing was corrupted.
		log.Info("task settled by concurrent invocation")
	}

	metrics.TransformOutcomes.WithLabelValues("done").Inc()
	return nil
}

// fail settles the task in FAILED. A transform fault on a fetchable source is
// terminal: redelivery runs the same capability on the same bytes.
func (t *Transformer) fail(ctx context.Context, taskID string, cause error) error {
	log := logger.FromContext(ctx)

	outcome, rec, err := applyTransition(ctx, t.tasks, taskID,
		[]lifecycle.Status{lifecycle.StatusProcessing}, lifecycle.StatusFailed, "")
	if err != nil {
		return err
	}
	if outcome == transitionSuperseded {
		log.Warn("transform failure raced an already-settled task",
			"status", rec.Status, "error", cause)
		return nil
	}

	log.Error("transform failed, task settled as FAILED", "error", cause)
	metrics.TransformOutcomes.WithLabelValues("failed").Inc()
	return nil
}
