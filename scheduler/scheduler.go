// Package scheduler runs the scrape and translate stages on fixed intervals.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one periodic task. A zero Every disables it.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// Scheduler ticks every enabled job in its own goroutine. A job never
// overlaps with itself: a tick that arrives while the previous run is still
// busy is dropped.
type Scheduler struct {
	jobs   []Job
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

func New(logger *zap.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{jobs: jobs, logger: logger}
}

// Enabled reports whether at least one job has an interval.
func (s *Scheduler) Enabled() bool {
	for _, j := range s.jobs {
		if j.Every > 0 && j.Run != nil {
			return true
		}
	}
	return false
}

// Start launches the job loops. Calling it twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, j := range s.jobs {
		if j.Every <= 0 || j.Run == nil {
			continue
		}
		s.wg.Add(1)
		go s.runLoop(ctx, j)
		s.logger.Info("Scheduled job", zap.String("job", j.Name), zap.Duration("every", j.Every))
	}
}

// Stop cancels the loops and waits for running jobs, or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runLoop(ctx context.Context, j Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(j.Every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, j)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, j Job) {
	start := time.Now()
	err := j.Run(ctx)
	switch {
	case err == nil:
		s.logger.Info("Job finished", zap.String("job", j.Name), zap.Duration("took", time.Since(start)))
	case errors.Is(err, context.Canceled):
		s.logger.Debug("Job cancelled", zap.String("job", j.Name))
	default:
		s.logger.Error("Job failed", zap.String("job", j.Name), zap.Error(err))
	}
}
