// Package retry wraps cenkalti/backoff with the cleaner's attempt budget
// and error predicate.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// defaultRandomization spreads each delay over [0.5d, 1.5d].
const defaultRandomization = 0.5

// Policy bounds how often and how long an operation is retried.
type Policy struct {
	// MaxAttempts counts the first try. Values below 1 are treated as 1.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable decides whether an error is worth another attempt. Nil
	// means nothing is retried.
	Retryable func(error) bool
	// NoJitter makes delays exact; tests use it.
	NoJitter bool
}

func (p Policy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// ShouldRetry applies the Retryable predicate.
func (p Policy) ShouldRetry(err error) bool {
	if err == nil || p.Retryable == nil {
		return false
	}
	return p.Retryable(err)
}

// NewBackOff returns a fresh delay sequence: BaseDelay doubling per retry,
// capped at MaxDelay, randomized unless NoJitter is set. It never stops on
// its own; callers bound it by Attempts.
func (p Policy) NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.Multiplier = 2
	b.RandomizationFactor = defaultRandomization
	if p.NoJitter {
		b.RandomizationFactor = 0
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Do runs fn until it succeeds, fails with a non-retryable error, runs out of
// attempts or ctx is done. It returns the number of retries made. When ctx
// ends while waiting, ctx.Err() is returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error, onRetry func(attempt int, delay time.Duration, err error)) (int, error) {
	b := backoff.WithContext(backoff.WithMaxRetries(p.NewBackOff(), uint64(p.Attempts()-1)), ctx)

	retries := 0
	op := func() error {
		err := fn(ctx)
		if err != nil && !p.ShouldRetry(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, delay time.Duration) {
		retries++
		if onRetry != nil {
			onRetry(retries, delay, err)
		}
	}

	err := backoff.RetryNotify(op, b, notify)
	return retries, err
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
