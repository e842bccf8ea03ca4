package backup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a Backuper on its cron schedule.
type Scheduler struct {
	backuper *Backuper
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewScheduler creates a scheduler for b.
func NewScheduler(b *Backuper) *Scheduler {
	return &Scheduler{
		backuper: b,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "store.backup.scheduler"),
	}
}

// Start schedules backups. An empty schedule leaves the scheduler idle. The
// scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule := s.backuper.config.Schedule
	if schedule == "" {
		s.logger.Info("backup schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule backups: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("backup scheduler started",
		"schedule", schedule,
		"dir", s.backuper.config.Dir,
		"keep", s.backuper.config.Keep,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	if _, err := s.backuper.Run(ctx); err != nil {
		s.logger.Error("scheduled backup failed", "error", err)
	}
}

// Stop stops the scheduler and waits for a running backup to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("backup scheduler stopped")
	}
}

// IsRunning reports whether backups are scheduled.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled backup time, or nil when idle.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
