package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRetentionSweep deletes expired declarations and access log rows.
	TaskRetentionSweep = "retention:sweep"
	// TaskAggregateWarmup precomputes aggregate dashboards into the cache.
	TaskAggregateWarmup = "aggregate:warmup"
	// TaskGuidanceLock locks guidance for assignments past their due date.
	TaskGuidanceLock = "guidance:lock_due"
)

// Default cron specs for the scheduler.
const (
	CronRetentionSweep  = "@every 24h"
	CronAggregateWarmup = "@every 1h"
	CronGuidanceLock    = "@every 15m"
)

// SweepPayload tags a sweep with the component that asked for it.
type SweepPayload struct {
	Trigger string `json:"trigger"`
}

// NewRetentionSweepTask constructs a retention sweep task.
func NewRetentionSweepTask(trigger string) (*asynq.Task, error) {
	return newSweepTask(TaskRetentionSweep, trigger)
}

// NewAggregateWarmupTask constructs an aggregate warmup task.
func NewAggregateWarmupTask(trigger string) (*asynq.Task, error) {
	return newSweepTask(TaskAggregateWarmup, trigger)
}

// NewGuidanceLockTask constructs a guidance lock task.
func NewGuidanceLockTask(trigger string) (*asynq.Task, error) {
	return newSweepTask(TaskGuidanceLock, trigger)
}

func newSweepTask(taskType, trigger string) (*asynq.Task, error) {
	if trigger == "" {
		trigger = "cron"
	}
	body, err := json.Marshal(SweepPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

func decodeSweep(t *asynq.Task) (SweepPayload, error) {
	var payload SweepPayload
	if len(t.Payload()) == 0 {
		return SweepPayload{Trigger: "cron"}, nil
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return SweepPayload{}, asynq.SkipRetry
	}
	if payload.Trigger == "" {
		payload.Trigger = "cron"
	}
	return payload, nil
}

// DefaultCron returns the schedule for every recurring task.
func DefaultCron() ([]CronRegistration, error) {
	specs := []struct {
		spec string
		make func(string) (*asynq.Task, error)
	}{
		{CronRetentionSweep, NewRetentionSweepTask},
		{CronAggregateWarmup, NewAggregateWarmupTask},
		{CronGuidanceLock, NewGuidanceLockTask},
	}
	out := make([]CronRegistration, 0, len(specs))
	for _, s := range specs {
		task, err := s.make("cron")
		if err != nil {
			return nil, err
		}
		out = append(out, CronRegistration{Spec: s.spec, Task: task})
	}
	return out, nil
}
