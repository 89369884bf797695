package export

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Scheduler runs exports on a fixed interval. Runs never overlap: the next
// tick is only considered once the previous run has returned.
type Scheduler struct {
	runner   *Runner
	interval time.Duration
	logger   *slog.Logger

	mu   sync.RWMutex
	last *RunReport
}

func NewScheduler(r *Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{runner: r, interval: interval, logger: logger}
}

// Start runs an export immediately and then every interval until ctx is done.
// A non-positive interval is rejected before any run.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("export interval must be positive, got %s", s.interval)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	report, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("export run aborted", "error", err)
	}
	if report != nil {
		s.mu.Lock()
		s.last = report
		s.mu.Unlock()
	}
}

// LastReport returns the report of the most recent run, or nil before the
// first run finishes.
func (s *Scheduler) LastReport() *RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}
