package export

import (
	"context"
	"time"
)

// DefaultDelay is the pause after each conversation that was fetched.
const DefaultDelay = 500 * time.Millisecond

// Pacer is called after every conversation the runner fetched, whatever the
// outcome. Skipped duplicates are not paced.
type Pacer interface {
	Pause(ctx context.Context) error
}

// DelayPacer waits a fixed delay.
type DelayPacer struct {
	Delay time.Duration
}

func (p DelayPacer) Pause(ctx context.Context) error {
	if p.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
