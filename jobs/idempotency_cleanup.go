package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-wms/internal/jobs"
)

const (
	// TaskIdempotencyCleanup purges expired purchase order idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
	// IdempotencyCleanupCronSpec runs the purge nightly at 03:30 UTC.
	IdempotencyCleanupCronSpec = "30 3 * * *"
	// DefaultIdempotencyRetention is how long a processed key blocks replays.
	DefaultIdempotencyRetention = 7 * 24 * time.Hour
)

// NewIdempotencyCleanupTask builds the purge task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}

// KeyPurger deletes idempotency keys older than a cutoff.
type KeyPurger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupJob keeps the idempotency_keys table bounded.
type IdempotencyCleanupJob struct {
	Keys      KeyPurger
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Keys == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	defer func() { err = tracker.End(err) }()

	retention := j.Retention
	if retention <= 0 {
		retention = DefaultIdempotencyRetention
	}
	if err := j.Keys.Cleanup(ctx, retention); err != nil {
		return err
	}
	loggerOrDefault(j.Logger).InfoContext(ctx, "idempotency keys purged", slog.Duration("retention", retention))
	return nil
}
