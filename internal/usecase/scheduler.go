package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"RegulatoryRadar/internal/domain"
	"RegulatoryRadar/internal/ports"
)

// Scanner is the orchestrator contract the trigger surface depends on.
type Scanner interface {
	Run(ctx context.Context) (domain.RunSummary, error)
}

// Scheduler wires the cron driver and on-demand triggers with the pipeline.
// Both paths end in Pipeline.Run, whose lock is the final arbiter.
type Scheduler struct {
	driver  ports.Scheduler
	scanner Scanner
	logger  *slog.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, scanner Scanner, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, scanner: scanner, logger: logger}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.scanner == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.log("scheduled scan", "trigger", trigger)
		_, _ = s.RunNow(ctx)
	}

	return s.driver.Start(ctx, job)
}

// RunNow executes a scan synchronously.
func (s *Scheduler) RunNow(ctx context.Context) (domain.RunSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return domain.RunSummary{}, domain.ErrScanInProgress
	}
	return s.run(ctx)
}

// run expects the caller to have claimed the running flag and clears it on return.
func (s *Scheduler) run(ctx context.Context) (domain.RunSummary, error) {
	defer s.running.Store(false)

	summary, err := s.scanner.Run(ctx)
	switch {
	case errors.Is(err, domain.ErrScanInProgress):
		s.log("scan skipped, another run holds the lock")
	case err != nil && s.logger != nil:
		s.logger.Error("scan failed", "run_id", summary.RunID.String(), "error", err)
	}
	return summary, err
}

// Trigger starts a scan in the background and returns at once. It reports
// domain.ErrScanInProgress when this process is already scanning.
func (s *Scheduler) Trigger(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return domain.ErrScanInProgress
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.run(ctx)
	}()
	return nil
}

// Running reports whether a scan started by this process is in flight.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Stop tears down the driver and waits for background triggers, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	var err error
	if s.driver != nil {
		err = s.driver.Stop(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (s *Scheduler) log(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}
