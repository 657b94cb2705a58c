package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/aiusage/disclosure/internal/jobs"
)

// GuidanceLocker freezes guidance for assignments past their due date.
type GuidanceLocker interface {
	LockDue(ctx context.Context) (int64, error)
}

// GuidanceLockJob locks overdue guidance on a schedule.
type GuidanceLockJob struct {
	Guidance GuidanceLocker
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewGuidanceLockJob wires dependencies for the lock handler.
func NewGuidanceLockJob(guidance GuidanceLocker, logger *slog.Logger, metrics *jobmetrics.Metrics) *GuidanceLockJob {
	return &GuidanceLockJob{Guidance: guidance, Logger: logger, Metrics: metrics}
}

// Handle processes guidance lock tasks.
func (j *GuidanceLockJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Guidance == nil {
		return errors.New("guidance lock: handler not configured")
	}
	if _, err := decodeSweep(t); err != nil {
		return err
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskGuidanceLock)
	n, err := j.Guidance.LockDue(ctx)
	if err != nil {
		j.logger().Error("lock overdue guidance", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger().Debug("locked overdue guidance", slog.Int64("count", n))
	return tracker.End(nil)
}

func (j *GuidanceLockJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskGuidanceLock))
	}
	return slog.Default().With(slog.String("job", TaskGuidanceLock))
}
