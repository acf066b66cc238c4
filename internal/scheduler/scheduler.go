// Package scheduler runs the background sync on a cron schedule in the
// stations' local timezone.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/hydro-monitor-service/internal/observability"
	"github.com/robfig/cron/v3"
)

// Task is one scheduled unit of work.
type Task func(ctx context.Context) error

// Scheduler triggers a Task on a cron spec. Overlapping runs are skipped.
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	timeout time.Duration
	task    Task
	logger  *slog.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	entry   cron.EntryID
}

// New validates spec (five-field cron or a descriptor such as "@every 1h")
// and returns a stopped scheduler. Each run gets its own timeout.
func New(spec string, loc *time.Location, timeout time.Duration, task Task, logger *slog.Logger, metrics *observability.Metrics) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		spec:    spec,
		timeout: timeout,
		task:    task,
		logger:  logger,
		metrics: metrics,
		baseCtx: context.Background(),
	}
	id, err := s.cron.AddFunc(spec, s.run)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

// Start begins firing the task. Runs are cancelled when ctx is done or Stop
// is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.metrics.SchedulerRunning.Set(1)
	s.logger.Info("scheduler started", "schedule", s.spec, "next", s.Next())
}

// Stop halts the schedule, cancels a run in flight and waits for it to
// return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.metrics.SchedulerRunning.Set(0)
	s.logger.Info("scheduler stopped")
}

// Next returns the next activation time, or zero when not started.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

func (s *Scheduler) run() {
	s.mu.Lock()
	base := s.baseCtx
	s.mu.Unlock()

	if err := s.RunOnce(base); err != nil {
		s.logger.Error("scheduled run failed", "error", err)
	}
}

// RunOnce executes the task immediately with the configured timeout.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	s.logger.Debug("scheduled run starting")
	if err := s.task(ctx); err != nil {
		return err
	}
	s.logger.Info("scheduled run finished", "duration", time.Since(start))
	return nil
}
