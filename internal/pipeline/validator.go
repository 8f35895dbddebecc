package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/mosaicworks/stylize-api/internal/lifecycle"
	"github.com/mosaicworks/stylize-api/internal/metrics"
	"github.com/mosaicworks/stylize-api/internal/platform/logger"
	"github.com/mosaicworks/stylize-api/internal/store"
)

// Validator checks uploaded source blobs against the acceptance policy and
// hands accepted tasks off to the transformer.
type Validator struct {
	tasks    lifecycle.TaskStore
	blobs    Blobs
	queue    HandoffSender
	maxBytes int64
}

// NewValidator creates a Validator with the given acceptance limit.
func NewValidator(tasks lifecycle.TaskStore, blobs Blobs, queue HandoffSender, maxBytes int64) *Validator {
	return &Validator{tasks: tasks, blobs: blobs, queue: queue, maxBytes: maxBytes}
}

// Validate handles one storage event for an uploaded blob. The object key
// equals the task id. A returned error means the invocation should be retried
// by redelivery; every policy outcome (accept, reject, duplicate) returns nil.
//
// The status transition and the handoff enqueue are not ordered relative to
// each other by contract: the transformer tolerates a handoff arriving before
// the transition is visible, and a duplicate enqueue is converged downstream.
// Only eventual completion of both matters.
func (v *Validator) Validate(ctx context.Context, taskID string) error {
	log := logger.FromContext(ctx).With("task_id", taskID)
	ctx = logger.WithLogger(ctx, log)

	data, err := v.blobs.GetSource(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to fetch uploaded blob: %w", err)
	}
	size := int64(len(data))

	if size > v.maxBytes {
		outcome, rec, err := applyTransition(ctx, v.tasks, taskID,
			[]lifecycle.Status{lifecycle.StatusNew}, lifecycle.StatusInvalid, "")
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				log.Warn("upload event for unregistered task, dropping", "size", size)
				metrics.ValidationOutcomes.WithLabelValues("skipped").Inc()
				return nil
			}
			return err
		}
		if outcome == transitionSuperseded {
			log.Warn("oversize upload raced an already-advanced task",
				"status", rec.Status, "size", size)
			return nil
		}

		log.Info("upload rejected as oversize", "size", size, "max_bytes", v.maxBytes)
		metrics.ValidationOutcomes.WithLabelValues("rejected").Inc()
		return nil
	}

	outcome, rec, err := applyTransition(ctx, v.tasks, taskID,
		[]lifecycle.Status{lifecycle.StatusNew}, lifecycle.StatusProcessing, "")
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("upload event for unregistered task, dropping", "size", size)
			metrics.ValidationOutcomes.WithLabelValues("skipped").Inc()
			return nil
		}
		return err
	}

	switch outcome {
	case transitionSuperseded:
		// Terminal already: a prior invocation completed the whole pipeline
		// (or rejected the task). Nothing left to hand off.
		log.Info("duplicate upload event for settled task", "status", rec.Status)
		metrics.ValidationOutcomes.WithLabelValues("skipped").Inc()
		return nil
	case transitionDuplicate:
		// An earlier invocation moved the task to PROCESSING but may have
		// died before enqueueing. Re-send; the transformer converges on
		// duplicates.
		log.Debug("re-validating task already in processing")
	default:
		log.Info("upload accepted", "size", size)
	}

	if err := v.queue.SendHandoff(ctx, lifecycle.HandoffMessage{TaskID: taskID}); err != nil {
		// The PROCESSING transition already committed. Redelivery of the
		// storage event retries this invocation and lands in the duplicate
		// path above, so the enqueue eventually happens.
		return fmt.Errorf("failed to enqueue handoff: %w", err)
	}

	metrics.ValidationOutcomes.WithLabelValues("accepted").Inc()
	return nil
}
