package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/aiusage/disclosure/internal/jobs"
	"github.com/aiusage/disclosure/internal/retention"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Sweeper runs one retention pass.
type Sweeper interface {
	RunOnce(ctx context.Context) retention.Report
}

// RetentionSweepJob runs the retention reaper from the queue.
type RetentionSweepJob struct {
	Reaper  Sweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewRetentionSweepJob wires dependencies for the sweep handler.
func NewRetentionSweepJob(reaper Sweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *RetentionSweepJob {
	return &RetentionSweepJob{Reaper: reaper, Logger: logger, Metrics: metrics}
}

// Handle processes retention sweep tasks. A partial failure is returned so the
// queue retries; deletions already made stay made.
func (j *RetentionSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reaper == nil {
		return errors.New("retention sweep: handler not configured")
	}
	payload, err := decodeSweep(t)
	if err != nil {
		return err
	}

	tracker := j.metrics().Track(TaskRetentionSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	report := j.Reaper.RunOnce(ctx)
	if report.Failed() {
		resultErr = errors.Join(report.DeclarationsErr, report.AuditErr)
		j.logger().Warn("retention sweep incomplete", slog.String("trigger", payload.Trigger), slog.Any("error", resultErr))
	}
	return resultErr
}

func (j *RetentionSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskRetentionSweep))
	}
	return slog.Default().With(slog.String("job", TaskRetentionSweep))
}

func (j *RetentionSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
