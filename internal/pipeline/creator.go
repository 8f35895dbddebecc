package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mosaicworks/stylize-api/internal/lifecycle"
	"github.com/mosaicworks/stylize-api/internal/metrics"
	"github.com/mosaicworks/stylize-api/internal/platform/logger"
)

// Creator allocates task identities and issues upload credentials.
type Creator struct {
	tasks lifecycle.TaskStore
	blobs Blobs
}

// NewCreator creates a Creator.
func NewCreator(tasks lifecycle.TaskStore, blobs Blobs) *Creator {
	return &Creator{tasks: tasks, blobs: blobs}
}

// CreatedTask is the result of task creation, returned to the caller.
type CreatedTask struct {
	TaskID string                      `json:"task_id"`
	Upload *lifecycle.UploadCredential `json:"presigned_upload"`
}

// Create allocates a fresh task id, registers it as NEW, and issues an
// upload credential scoped to the id as the blob key. The durable write
// strictly precedes credential issuance, so a client can never upload
// against an unregistered id.
func (c *Creator) Create(ctx context.Context) (*CreatedTask, error) {
	taskID := uuid.New().String()
	log := logger.FromContext(ctx).With("task_id", taskID)

	if err := c.tasks.Create(ctx, taskID); err != nil {
		return nil, fmt.Errorf("failed to register task: %w", err)
	}

	cred, err := c.blobs.PresignUpload(ctx, taskID)
	if err != nil {
		// The NEW record stays behind; it is harmless and the caller simply
		// never receives an upload target for it.
		return nil, fmt.Errorf("failed to issue upload credential: %w", err)
	}

	metrics.TasksCreated.Inc()
	log.Info("task created")

	return &CreatedTask{TaskID: taskID, Upload: cred}, nil
}
