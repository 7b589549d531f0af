package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRateLimited matches every *Error via errors.Is.
var ErrRateLimited = errors.New("rate limit exceeded")

// Error is returned by functions wrapped with WithRateLimit when the call was
// rejected before reaching the wrapped function.
type Error struct {
	Message    string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrRateLimited.Error()
}

func (e *Error) Is(target error) bool {
	return target == ErrRateLimited
}

func newError(key string, retryAfter time.Duration) *Error {
	return &Error{
		Message:    fmt.Sprintf("rate limit exceeded for %q, retry after %s", key, retryAfter.Round(time.Millisecond)),
		RetryAfter: retryAfter,
	}
}

// WithRateLimit returns fn guarded by limiter: every invocation first checks
// key against rule and fails with *Error, without calling fn, when the check
// rejects. Errors from fn are returned unchanged.
func WithRateLimit[T any](limiter Limiter, fn func(context.Context) (T, error), key string, rule Rule) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		res := limiter.Check(ctx, key, rule)
		if !res.Allowed {
			var zero T
			return zero, newError(key, res.RetryAfter)
		}
		return fn(ctx)
	}
}

// RetryAfter extracts the retry hint from a rate limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var rlErr *Error
	if errors.As(err, &rlErr) {
		return rlErr.RetryAfter, true
	}
	return 0, false
}
