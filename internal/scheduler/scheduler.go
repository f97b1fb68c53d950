package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

const refreshTag = "refresh"

// RefreshFunc performs one refresh.
type RefreshFunc func(ctx context.Context) error

// Scheduler runs the refresh immediately on start and then on a fixed interval.
// Runs never overlap.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresh   RefreshFunc
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	ctx       context.Context
}

// New creates a Scheduler. timeout bounds a single refresh; zero means the
// interval.
func New(refresh RefreshFunc, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = interval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		refresh:   refresh,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
		ctx:       context.Background(),
	}
}

// Start schedules the refresh job and starts the underlying scheduler. Jobs
// stop being started once ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("scheduler: refresh interval must be positive")
	}
	s.ctx = ctx

	_, err := s.scheduler.Every(s.interval).Tag(refreshTag).SingletonMode().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "interval", s.interval)
	return nil
}

// RunNow triggers an out-of-schedule refresh.
func (s *Scheduler) RunNow() error {
	return s.scheduler.RunByTag(refreshTag)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) run() {
	if s.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	s.logger.Info("refresh started")
	if err := s.refresh(ctx); err != nil {
		s.logger.Error("refresh failed", "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Info("refresh completed", "duration", time.Since(start))
}
