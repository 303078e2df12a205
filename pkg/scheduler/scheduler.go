// Package scheduler runs the periodic sweeps: resuming executions whose
// delay has elapsed and flagging overdue human tasks.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/services"
)

const defaultSchedule = "@every 30s"

// Scheduler drives the time-based parts of the engine. It owns a cron
// runner with two entries: the delay sweep and the overdue task sweep.
type Scheduler struct {
	executions *services.Execution
	tasks      *services.Task
	logger     *slog.Logger
	cron       *cron.Cron
	schedule   string
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithSchedule overrides the sweep interval, in cron syntax.
func WithSchedule(schedule string) Option {
	return func(s *Scheduler) {
		s.schedule = schedule
	}
}

func NewScheduler(executions *services.Execution, tasks *services.Task, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		executions: executions,
		tasks:      tasks,
		logger:     logger,
		cron:       cron.New(),
		schedule:   defaultSchedule,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start registers the sweeps and begins running them. The context bounds
// each individual sweep, not the scheduler lifetime; call Stop to shut down.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.sweepDelays(ctx) }); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.sweepOverdue(ctx) }); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Scheduler started", "schedule", s.schedule)

	return nil
}

// Stop halts the cron runner and waits for running sweeps to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	s.logger.Info("Scheduler stopped")
}

// sweepDelays resumes executions parked on an elapsed delay.
func (s *Scheduler) sweepDelays(ctx context.Context) {
	resumed, err := s.executions.ResumeDue(ctx)
	if err != nil {
		s.logger.Error("Delay sweep failed", "error", err)

		return
	}

	if resumed > 0 {
		s.logger.Info("Resumed delayed executions", "count", resumed)
	}
}

// sweepOverdue surfaces open tasks past their due date.
func (s *Scheduler) sweepOverdue(ctx context.Context) {
	overdue, err := s.tasks.ListOverdue(ctx)
	if err != nil {
		s.logger.Error("Overdue task sweep failed", "error", err)

		return
	}

	for _, task := range overdue {
		s.logger.Warn("Task is overdue",
			"task_id", task.ID,
			"execution_id", task.ExecutionID,
			"node_id", task.NodeID,
			"due_date", task.DueDate,
			"assignees", task.Assignees)
	}
}
