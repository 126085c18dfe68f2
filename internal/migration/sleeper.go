package migration

import (
	"context"
	"time"
)

// sleep waits for d or until the context is cancelled, whichever comes first.
// It returns true when the wait was cut short by cancellation so callers can
// propagate the stop instead of waiting out the full duration.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() != nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}

// seconds converts a fractional-seconds config value to a Duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
