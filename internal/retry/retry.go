// Package retry holds the exponential backoff policy shared by the build
// cycle validator and the dynamic tool builder.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned once every permitted attempt has failed.
var ErrExhausted = errors.New("retry budget exhausted")

const (
	defaultBase = 250 * time.Millisecond
	defaultMax  = 5 * time.Second
	maxShift    = 10
)

// Policy bounds how often and how slowly a failing step is retried.
type Policy struct {
	MaxRetries int
	Base       time.Duration
	Max        time.Duration
}

// Backoff returns the delay before retry number attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = defaultBase
	}
	maxBackoff := p.Max
	if maxBackoff <= 0 {
		maxBackoff = defaultMax
	}

	shift := attempt - 1
	if shift < 0 {
		shift = 0
	}
	if shift > maxShift {
		shift = maxShift
	}
	backoff := base * time.Duration(1<<shift)
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}

// SleepFunc suspends for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
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

// Failure describes one failed attempt.
type Failure struct {
	Attempt int
	Err     error
	// Final is set on the attempt that exhausts the budget.
	Final bool
}

// Do runs op until it succeeds or MaxRetries retries have also failed.
// onFailure observes every failed attempt; a non-nil return aborts Do with
// that error. Cancellation of ctx aborts between attempts.
func Do(ctx context.Context, p Policy, sleep SleepFunc, op func(context.Context) error, onFailure func(Failure) error) error {
	if sleep == nil {
		sleep = Sleep
	}
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}

		final := attempt > maxRetries
		if onFailure != nil {
			if ferr := onFailure(Failure{Attempt: attempt, Err: err, Final: final}); ferr != nil {
				return ferr
			}
		}
		if final {
			return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
		}
		if serr := sleep(ctx, p.Backoff(attempt)); serr != nil {
			return serr
		}
	}
}
