// Package retrier runs idempotent remote calls with bounded exponential backoff.
package retrier

import (
	"context"
	"errors"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/jitter"
	"github.com/Rican7/retry/strategy"
)

// Policy bounds a retry loop.
type Policy struct {
	Attempts uint
	Base     time.Duration
	Factor   float64
	Jitter   float64
}

// DefaultPolicy matches the wallet service's recommended client behaviour.
var DefaultPolicy = Policy{Attempts: 4, Base: 200 * time.Millisecond, Factor: 2, Jitter: 0.25}

// None performs a single attempt.
var None = Policy{Attempts: 1}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	var perm *permanentError
	if err == nil || errors.As(err, &perm) {
		return err
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, returns a permanent error, ctx is done or the attempts run out.
// The wait between attempts is cut short when ctx is done.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.Attempts == 0 {
		p.Attempts = 1
	}

	var stop error
	err := retry.Retry(func(attempt uint) error {
		err := fn(ctx)
		var perm *permanentError
		if errors.As(err, &perm) {
			stop = perm.err
			return nil
		}
		return err
	},
		strategy.Limit(p.Attempts),
		p.wait(ctx),
	)
	if stop != nil {
		return stop
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

// Delay returns the wait before the given attempt. Attempt 0 never waits.
func (p Policy) Delay(attempt uint) time.Duration {
	if attempt == 0 || p.Base <= 0 {
		return 0
	}
	factor := p.Factor
	if factor <= 0 {
		factor = 1
	}
	return backoff.Exponential(p.Base, factor)(attempt)
}

func (p Policy) wait(ctx context.Context) strategy.Strategy {
	var spread jitter.Transformation
	if p.Jitter > 0 {
		spread = jitter.Deviation(nil, p.Jitter)
	}

	return func(attempt uint) bool {
		if ctx.Err() != nil {
			return false
		}
		d := p.Delay(attempt)
		if spread != nil && d > 0 {
			d = spread(d)
		}
		if d <= 0 {
			return true
		}

		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		}
	}
}
