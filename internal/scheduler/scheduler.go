// Package scheduler re-submits recurring competitions on a cron
// schedule, using the heuristic winner selector since no human is
// present.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
	"github.com/mtzanidakis/agon/internal/config"
	"github.com/mtzanidakis/agon/internal/store"
)

// Submitter starts a project run in the background.
type Submitter interface {
	SubmitProject(ctx context.Context, task string) (*store.Project, error)
}

type Scheduler struct {
	db           *store.Store
	runner       Submitter
	pollInterval time.Duration
}

func New(db *store.Store, runner Submitter, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		db:           db,
		runner:       runner,
		pollInterval: cfg.PollInterval,
	}
}

// Validate reports whether the cron expression is usable.
func Validate(expr string) bool {
	return gronx.New().IsValid(expr)
}

// NextRun computes the next tick for the expression.
func NextRun(expr string) (time.Time, error) {
	return gronx.NextTick(expr, false)
}

func (s *Scheduler) Start(ctx context.Context) {
	if s.pollInterval == 0 {
		s.pollInterval = 30 * time.Second
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	slog.Info("scheduler started", "poll_interval", s.pollInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Scheduler) poll(ctx context.Context) {
	due, err := s.db.GetDueRuns(time.Now().UTC())
	if err != nil {
		slog.Error("get due runs failed", "error", err)
		return
	}

	for _, run := range due {
		s.fire(ctx, run)
	}
}

func (s *Scheduler) fire(ctx context.Context, run store.ScheduledRun) {
	slog.Info("firing scheduled run", "id", run.ID, "name", run.Name)

	status, errMsg := "ok", ""
	if _, err := s.runner.SubmitProject(ctx, run.Task); err != nil {
		status, errMsg = "error", err.Error()
		slog.Error("scheduled run failed", "id", run.ID, "error", err)
	}

	var nextPtr *time.Time
	if next, err := gronx.NextTick(run.Schedule, false); err == nil {
		nextPtr = &next
	} else {
		slog.Warn("invalid schedule, run disabled", "id", run.ID, "schedule", run.Schedule)
	}

	if err := s.db.UpdateRunResult(run.ID, status, errMsg, nextPtr); err != nil {
		slog.Error("update run result failed", "id", run.ID, "error", err)
	}
}
