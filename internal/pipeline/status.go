package pipeline

import (
	"context"
	"fmt"

	"github.com/mosaicworks/stylize-api/internal/lifecycle"
	"github.com/mosaicworks/stylize-api/internal/metrics"
)

// StatusReader answers read-only status queries. It never mutates state.
type StatusReader struct {
	tasks lifecycle.TaskStore
	blobs Blobs
}

// NewStatusReader creates a StatusReader.
func NewStatusReader(tasks lifecycle.TaskStore, blobs Blobs) *StatusReader {
	return &StatusReader{tasks: tasks, blobs: blobs}
}

// TaskStatus is the caller-facing view of a task. URL is present only for
// DONE tasks and is a freshly computed retrieval credential, never a cached
// one, since credentials expire.
type TaskStatus struct {
	TaskID string           `json:"task_id"`
	Status lifecycle.Status `json:"status"`
	URL    string           `json:"url,omitempty"`
}

// Status returns the task's current state, with a retrieval URL when the
// result is ready. Unknown ids surface store.ErrNotFound.
func (r *StatusReader) Status(ctx context.Context, taskID string) (*TaskStatus, error) {
	rec, err := r.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	out := &TaskStatus{TaskID: rec.TaskID, Status: rec.Status}

	if rec.Status == lifecycle.StatusDone {
		url, err := r.blobs.PresignResult(ctx, rec.ResultLocation)
		if err != nil {
			return nil, fmt.Errorf("failed to presign result for task %s: %w", taskID, err)
		}
		out.URL = url
	}

	metrics.StatusReads.Inc()
	return out, nil
}
