package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryableError indicates a transient failure (quota, overload, network)
// that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("retryable error: %s", truncate(e.Message, 200))
	}
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Policy is the bounded exponential backoff applied uniformly to every
// external call (summarizer, generator, embedder).
type Policy struct {
	MaxRetries uint64        // retries after the first attempt
	Base       time.Duration // first backoff
	Cap        time.Duration // per-wait ceiling
}

// DefaultPolicy makes 3 attempts in total.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 2,
		Base:       1 * time.Second,
		Cap:        30 * time.Second,
	}
}

func (p Policy) backoff() retry.Backoff {
	base := p.Base
	if base <= 0 {
		base = time.Second
	}
	b := retry.NewExponential(base)
	b = retry.WithJitterPercent(20, b)
	if p.Cap > 0 {
		b = retry.WithCappedDuration(p.Cap, b)
	}
	return retry.WithMaxRetries(p.MaxRetries, b)
}

// Do runs fn, retrying while it returns a RetryableError and attempts remain.
// The last error is returned unwrapped.
func (p Policy) Do(ctx context.Context, log *slog.Logger, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && IsRetryable(err) {
			if log != nil {
				log.Warn("retryable error", "op", op, "attempt", attempt, "error", err)
			}
			attempt++
			return retry.RetryableError(err)
		}
		return err
	})
}
