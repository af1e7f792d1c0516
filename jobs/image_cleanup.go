package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-wms/internal/jobs"
)

// TaskImageCleanup retries deletion of blob references.
const TaskImageCleanup = "image:cleanup"

// ImageCleanupPayload lists the references to delete.
type ImageCleanupPayload struct {
	Refs []string `json:"refs"`
}

// NewImageCleanupTask builds a cleanup task.
func NewImageCleanupTask(refs []string) (*asynq.Task, error) {
	if len(refs) == 0 {
		return nil, errors.New("jobs: image cleanup requires refs")
	}
	body, err := json.Marshal(ImageCleanupPayload{Refs: refs})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskImageCleanup, body, asynq.Queue(QueueDefault), asynq.MaxRetry(10)), nil
}

// RefDeleter removes a stored blob. Deleting a missing ref succeeds.
type RefDeleter interface {
	DeleteRef(ctx context.Context, ref string) error
}

// ImageCleanupJob deletes blobs whose synchronous release failed.
type ImageCleanupJob struct {
	Images  RefDeleter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskImageCleanup tasks. Any failure fails the task so
// asynq retries the whole batch.
func (j *ImageCleanupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Images == nil {
		return errors.New("image cleanup: handler not configured")
	}
	var payload ImageCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return errors.Join(err, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskImageCleanup)
	defer func() { err = tracker.End(err) }()

	var errs []error
	for _, ref := range payload.Refs {
		if ref == "" {
			continue
		}
		if err := j.Images.DeleteRef(ctx, ref); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", ref, err))
		}
	}
	j.Metrics.SetPendingCleanup(len(errs))
	if len(errs) > 0 {
		loggerOrDefault(j.Logger).Warn("image cleanup incomplete", slog.Int("failed", len(errs)), slog.Int("total", len(payload.Refs)))
		return errors.Join(errs...)
	}
	return nil
}
