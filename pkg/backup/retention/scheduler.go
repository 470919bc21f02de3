package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the pruner on a cron schedule.
type Scheduler struct {
	pruner  *Pruner
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
	entry   cron.EntryID
	done    chan struct{}
}

// NewScheduler creates a new retention scheduler.
func NewScheduler(pruner *Pruner) *Scheduler {
	return &Scheduler{
		pruner: pruner,
		cron:   cron.New(),
		logger: pruner.logger.With("component", "backup.retention.scheduler"),
	}
}

// Start begins scheduled pruning based on pruner.config.Schedule, which is a
// standard cron expression or a descriptor:
//   - "@every 5m"   - Every five minutes
//   - "0 */6 * * *" - Every 6 hours
//   - "@daily"      - Daily at midnight
//
// If Schedule is empty, the scheduler does nothing. A round that is still
// running when the next one is due delays it; rounds never overlap.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	schedule := s.pruner.config.Schedule
	if schedule == "" {
		s.logger.Info("retention schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}

	job := cron.NewChain(cron.DelayIfStillRunning(cron.DiscardLogger)).Then(
		cron.FuncJob(func() { s.runPruning(ctx) }),
	)
	entry, err := s.cron.AddJob(schedule, job)
	if err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.entry = entry
	s.cron.Start()
	s.done = make(chan struct{})
	s.running = true

	s.logger.Info("retention scheduler started",
		"schedule", schedule,
		"window", s.pruner.config.Window,
		"dry_run", s.pruner.config.DryRun,
	)

	go func(done <-chan struct{}) {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-done:
		}
	}(s.done)

	return nil
}

// runPruning executes one round. Errors are logged; the next round runs on
// schedule regardless.
func (s *Scheduler) runPruning(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	started := s.pruner.clock()
	report, err := s.pruner.Prune(ctx)
	s.pruner.metrics.recordExecution(started, s.nextRun())

	if err != nil {
		s.logger.Error("scheduled pruning failed", "error", err)
		return
	}

	if failed := report.Failed(); len(failed) > 0 {
		s.logger.Warn("scheduled pruning completed with failures",
			"run_id", report.RunID,
			"failed_partitions", len(failed),
		)
	}
}

// Stop stops the scheduler and waits for a running round to complete. The
// job is removed so a later Start schedules exactly one entry again.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.cron.Remove(s.entry)
		close(s.done)
		s.running = false
		s.logger.Info("retention scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled pruning time.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	return s.nextRun()
}

// nextRun reads the next run from cron without taking s.mu, so a running
// round can call it while Stop waits for the round to finish.
func (s *Scheduler) nextRun() *time.Time {
	entry := s.cron.Entry(s.entry)
	if !entry.Valid() || entry.Next.IsZero() {
		return nil
	}

	next := entry.Next
	return &next
}
