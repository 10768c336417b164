package retry

import (
	"context"
	"time"
)

const defaultBase = 100 * time.Millisecond

// Backoff retries a call with exponentially growing, capped delays.
type Backoff struct {
	Base     time.Duration
	Max      time.Duration
	Attempts int
	// OnRetry, when set, is called before each delayed retry.
	OnRetry func(attempt int, err error)
}

// Delay returns the wait before retry number attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := b.Base
	if base <= 0 {
		base = defaultBase
	}

	delay := base * time.Duration(1<<(attempt-1))
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	return delay
}

// Do calls fn until it succeeds, returns an error retryable rejects, or
// Attempts retries have been spent. A nil retryable retries every error.
func (b Backoff) Do(ctx context.Context, fn func(context.Context) error, retryable func(error) bool) error {
	err := fn(ctx)
	for attempt := 1; err != nil && attempt <= b.Attempts; attempt++ {
		if retryable != nil && !retryable(err) {
			return err
		}
		if b.OnRetry != nil {
			b.OnRetry(attempt, err)
		}

		timer := time.NewTimer(b.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		err = fn(ctx)
	}
	return err
}
