package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/aiusage/disclosure/internal/jobs"
)

// Warmer precomputes cached aggregates and reports how many scopes it warmed.
type Warmer interface {
	Warm(ctx context.Context) (int, error)
}

// AggregateWarmupJob pre-populates the aggregate cache for every course and faculty.
type AggregateWarmupJob struct {
	Aggregates Warmer
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	Timeout    time.Duration
	clock      func() time.Time
}

// NewAggregateWarmupJob wires dependencies for the warmup handler.
func NewAggregateWarmupJob(aggregates Warmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *AggregateWarmupJob {
	return &AggregateWarmupJob{
		Aggregates: aggregates,
		Logger:     logger,
		Metrics:    metrics,
		Timeout:    2 * time.Minute,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes aggregate warmup tasks.
func (j *AggregateWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Aggregates == nil {
		return errors.New("aggregate warmup: handler not configured")
	}
	payload, err := decodeSweep(t)
	if err != nil {
		return err
	}

	tracker := j.metrics().Track(TaskAggregateWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("trigger", payload.Trigger))
	logger.Info("starting aggregate warmup")

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	start := j.now()
	warmed, err := j.Aggregates.Warm(ctx)
	j.metrics().AddWarmed(warmed)
	if err != nil {
		resultErr = err
		logger.Error("aggregate warmup", slog.Int("scopes", warmed), slog.Any("error", err))
		return resultErr
	}
	logger.Info("completed aggregate warmup", slog.Int("scopes", warmed), slog.Duration("duration", j.now().Sub(start)))
	return resultErr
}

func (j *AggregateWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAggregateWarmup))
	}
	return slog.Default().With(slog.String("job", TaskAggregateWarmup))
}

func (j *AggregateWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AggregateWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
