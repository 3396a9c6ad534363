package poller

import (
	"context"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffStep = 800 * time.Millisecond
)

// RetryPolicy is a bounded retry discipline.
//
// The zero value is not usable; start from [DefaultRetryPolicy] and override
// fields as needed. Tests replace Sleep to run without real timers.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Classify reports whether an error is transient and may be retried.
	Classify func(error) bool

	// Backoff returns the delay before the attempt following the given one.
	// attempt is 1-based.
	Backoff func(attempt int) time.Duration

	// Sleep waits for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns 3 attempts, [IsTransient] classification and a
// linear 800ms backoff (800ms, 1600ms).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultMaxAttempts,
		Classify:    IsTransient,
		Backoff:     LinearBackoff(defaultBackoffStep),
		Sleep:       SleepContext,
	}
}

// LinearBackoff returns a backoff of attempt × step.
func LinearBackoff(step time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// SleepContext sleeps for d, returning early with ctx.Err() if ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs op until it succeeds, fails permanently, or MaxAttempts is reached.
//
// It returns the number of attempts made and the last error (nil on success).
// Permanent errors stop immediately. No delay follows the final attempt.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	classify := p.Classify
	if classify == nil {
		classify = IsTransient
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = op(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if !classify(err) || attempt == maxAttempts {
			return attempt, err
		}

		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff(attempt)
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return attempt, err
		}
	}
	return maxAttempts, err
}
