package censor

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy retries an operation on transport faults only.
//
// Attempt n (zero-based) that fails with ErrTransport is followed by a sleep
// of BaseDelay * 2^n. Any other error fails immediately. When every attempt
// failed with a transport fault the result is an ErrRetryExhausted error
// wrapping the last fault.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// label used for metrics and error messages
	Provider string
}

var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	return p
}

// Do runs op under the policy. See Retry for a typed variant.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	p = p.withDefaults()

	backoff := retry.WithMaxRetries(uint64(p.MaxAttempts-1), retry.NewExponential(p.BaseDelay))
	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrTransport) {
			if attempts < p.MaxAttempts {
				retryCount.WithLabelValues(p.Provider).Inc()
			}
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransport) {
		return &Error{
			Kind:     ErrRetryExhausted,
			Provider: p.Provider,
			Msg:      "request failed after maximum attempts",
			Err:      err,
		}
	}
	if errors.Is(err, ErrCensor) {
		return err
	}
	return Wrap(ErrCensor, p.Provider, "unexpected error", err)
}

// Retry runs op under policy p and returns its value.
func Retry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
