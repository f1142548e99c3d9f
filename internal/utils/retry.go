package utils

import (
	"context"
	"time"
)

// RetryFixed calls fn up to attempts times, sleeping delay between failed attempts.
// It returns nil on the first success, otherwise the last error. The attempt number
// (starting at 1) is passed to fn. Cancellation of ctx stops waiting between attempts.
func RetryFixed(ctx context.Context, attempts int, delay time.Duration, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}

		// Don't sleep after the last failed attempt.
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return err
}
