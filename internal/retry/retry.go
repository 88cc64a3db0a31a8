// Package retry implements the bounded retry loop shared by the generation
// clients.
package retry

import (
	"context"
	"time"
)

// Decision is the outcome of classifying a failed attempt.
type Decision int

const (
	Retryable Decision = iota
	Fatal
)

// Classifier decides whether a failure may be retried.
type Classifier func(err error) Decision

// DelayPolicy returns the wait after the failed attempt with the given
// zero-based index.
type DelayPolicy func(attempt int) time.Duration

// State describes a single call's progress. It is discarded once Do returns.
type State struct {
	Attempt   int
	LastError error
	NextDelay time.Duration
}

// Policy configures Do.
type Policy struct {
	MaxAttempts int
	Classify    Classifier
	Delay       DelayPolicy
	// OnRetry is invoked before sleeping ahead of the next attempt.
	OnRetry func(State)
}

// Do runs fn until it succeeds, a failure is classified Fatal, the context is
// done, or MaxAttempts attempts have been made. It returns the last error on
// failure; the caller applies its own fallback.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, State, error) {
	var zero T
	limit := p.MaxAttempts
	if limit < 1 {
		limit = 1
	}
	st := State{}
	for attempt := 0; attempt < limit; attempt++ {
		st.Attempt = attempt + 1
		v, err := fn(ctx, attempt)
		if err == nil {
			st.LastError = nil
			st.NextDelay = 0
			return v, st, nil
		}
		st.LastError = err
		st.NextDelay = 0
		if ctx.Err() != nil {
			return zero, st, err
		}
		if p.Classify != nil && p.Classify(err) == Fatal {
			return zero, st, err
		}
		if attempt+1 >= limit {
			break
		}
		if p.Delay != nil {
			st.NextDelay = p.Delay(attempt)
		}
		if p.OnRetry != nil {
			p.OnRetry(st)
		}
		if serr := Sleep(ctx, st.NextDelay); serr != nil {
			return zero, st, err
		}
	}
	return zero, st, st.LastError
}

// Fixed waits d between every attempt.
func Fixed(d time.Duration) DelayPolicy {
	return func(int) time.Duration { return d }
}

// Linear grows the wait by step per attempt, starting at floor and capped at ceiling.
func Linear(floor, step, ceiling time.Duration) DelayPolicy {
	return func(attempt int) time.Duration {
		d := floor + time.Duration(attempt)*step
		if d < floor {
			d = floor
		}
		if ceiling > 0 && d > ceiling {
			d = ceiling
		}
		return d
	}
}

// Sleep waits for d or until ctx is done.
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
