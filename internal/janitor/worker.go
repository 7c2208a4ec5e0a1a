// Package janitor sweeps the attribution channel for orphaned proxy tasks:
// tasks created for a handoff that no partner ever accepted. Left alone they
// sit in the partner queue forever, so a periodic job cancels them once they
// pass the TTL.
package janitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/fvmach/BPO-Assignment/internal/models"
)

// DefaultTTL is how long an attribution task may stay unaccepted.
const DefaultTTL = 2 * time.Hour

// TaskSweeper is the engine surface the janitor needs.
type TaskSweeper interface {
	ListTasks(ctx context.Context, taskChannel string, createdBefore time.Time) ([]*models.Task, error)
	CancelTask(ctx context.Context, taskSid string) error
}

type SweepArgs struct{}

func (SweepArgs) Kind() string { return "attribution_task_sweep" }

type SweepWorker struct {
	river.WorkerDefaults[SweepArgs]
	engine TaskSweeper
	ttl    time.Duration
	log    *slog.Logger
}

func NewSweepWorker(engine TaskSweeper, ttl time.Duration, log *slog.Logger) *SweepWorker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &SweepWorker{engine: engine, ttl: ttl, log: log}
}

func (w *SweepWorker) Work(ctx context.Context, _ *river.Job[SweepArgs]) error {
	cutoff := time.Now().Add(-w.ttl)
	tasks, err := w.engine.ListTasks(ctx, models.AttributionChannel, cutoff)
	if err != nil {
		return err
	}

	canceled := 0
	for _, t := range tasks {
		switch t.AssignmentStatus {
		case models.TaskStatusPending, models.TaskStatusReserved:
		default:
			continue
		}
		if err := w.engine.CancelTask(ctx, t.Sid); err != nil {
			w.log.Warn("could not cancel stale attribution task", "task_sid", t.Sid, "error", err)
			continue
		}
		canceled++
	}
	if canceled > 0 {
		w.log.Info("canceled stale attribution tasks", "count", canceled, "cutoff", cutoff)
	}
	return nil
}
