// Package resilience retries transient failures with exponential backoff.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/WessleyAI/article-indexer/pkg/fn"
)

// RetryOpts configures Retry.
type RetryOpts struct {
	// MaxAttempts is the total number of calls, the first included.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt; it doubles after each
	// further failure up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Retryable decides whether an error is worth another attempt. Nil
	// retries every error.
	Retryable func(error) bool
	// OnRetry, when set, is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryOpts provides sensible defaults.
var DefaultRetryOpts = RetryOpts{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    10 * time.Second,
}

func (o RetryOpts) withDefaults() RetryOpts {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultRetryOpts.MaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultRetryOpts.BaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultRetryOpts.MaxDelay
	}
	return o
}

// delay returns the wait after the given failed attempt (1-based).
func (o RetryOpts) delay(attempt int) time.Duration {
	d := o.BaseDelay
	for i := 1; i < attempt && d < o.MaxDelay; i++ {
		d *= 2
	}
	return min(d, o.MaxDelay)
}

// Retry calls f until it succeeds, returns a non-retryable error, the
// attempts run out or ctx is done. The last error is returned, annotated
// with the attempt count when more than one call was made.
func Retry(ctx context.Context, opts RetryOpts, f func(context.Context) error) error {
	opts = opts.withDefaults()
	attempt := 1
	for {
		err := f(ctx)
		if err == nil {
			return nil
		}
		if opts.Retryable != nil && !opts.Retryable(err) {
			return err
		}
		if attempt >= opts.MaxAttempts {
			if attempt > 1 {
				return fmt.Errorf("after %d attempts: %w", attempt, err)
			}
			return err
		}
		d := opts.delay(attempt)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, d, err)
		}
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
		attempt++
	}
}

// RetryStage wraps an fn.Stage so failed results are retried.
func RetryStage[In, Out any](opts RetryOpts, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	return func(ctx context.Context, in In) fn.Result[Out] {
		var out Out
		err := Retry(ctx, opts, func(ctx context.Context) error {
			v, err := stage(ctx, in).Unwrap()
			out = v
			return err
		})
		if err != nil {
			return fn.Err[Out](err)
		}
		return fn.Ok(out)
	}
}
