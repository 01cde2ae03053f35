// Package retry provides the bounded retry-with-backoff used for upstream
// provider calls. Refresh cycles either succeed within the retry budget or
// fail fast into cache fallback; nothing hangs.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// Permanent wraps an error that must not be retried (auth failures, malformed
// requests). Do returns it immediately.
type Permanent struct {
	Err error
}

func (p Permanent) Error() string { return p.Err.Error() }
func (p Permanent) Unwrap() error { return p.Err }

// Do invokes fn up to attempts times with exponential backoff between
// attempts (delay, 2*delay, 4*delay, ...). The context cancels the wait.
func Do(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := delay * time.Duration(1<<uint(attempt-1))
			log.Debug().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying after backoff")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		var perm Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}
		lastErr = err
	}
	return lastErr
}
