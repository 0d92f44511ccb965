// internal/browser/wait.go
package browser

import (
	"context"
	"errors"
	"time"
)

// DefaultPollInterval is used when WaitUntil is given a non-positive interval.
const DefaultPollInterval = 100 * time.Millisecond

// ErrWaitTimeout is returned when a wait condition does not hold in time.
var ErrWaitTimeout = errors.New("timed out waiting for condition")

// WaitUntil evaluates cond immediately and then every interval until it returns
// true or timeout elapses. A non-positive timeout checks exactly once.
// Cancellation of ctx is reported as the context error, expiry of timeout as
// ErrWaitTimeout.
func WaitUntil(ctx context.Context, timeout, interval time.Duration, cond func(ctx context.Context) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cond(ctx) {
		return nil
	}
	if timeout <= 0 {
		return ErrWaitTimeout
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			// One last look so a condition that became true on the boundary wins.
			if cond(ctx) {
				return nil
			}
			return ErrWaitTimeout
		case <-ticker.C:
			if cond(ctx) {
				return nil
			}
		}
	}
}
