// Package ratelimit defines the fixed-window rate limiting contract shared by
// the in-memory and Redis implementations.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides per key whether a call should be accepted. Implementations
// must be safe for concurrent use and never fail: infrastructure problems are
// absorbed by the implementation.
type Limiter interface {
	Check(ctx context.Context, key string, rule Rule) Result
	// Remaining reports how many calls the current window still accepts
	// without consuming one.
	Remaining(ctx context.Context, key string, rule Rule) int
	Reset(ctx context.Context, key string)
	Clear(ctx context.Context)
}

// Rule bounds the number of calls accepted per Window. A positive
// BlockDuration puts the key into a cooldown once the ceiling is exceeded.
type Rule struct {
	MaxRequests   int           `yaml:"max_requests"`
	Window        time.Duration `yaml:"window"`
	BlockDuration time.Duration `yaml:"block_duration"`
}

// Enabled reports whether the rule limits anything at all.
func (r Rule) Enabled() bool {
	return r.MaxRequests > 0 && r.Window > 0
}

type Outcome string

const (
	OutcomeAllowed      Outcome = "allowed"
	OutcomeLimited      Outcome = "limited"
	OutcomeBlocked      Outcome = "blocked"
	OutcomeBlockStarted Outcome = "block_started"
)

// Result is returned by every Check.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	// RetryAfter is zero when Allowed.
	RetryAfter time.Duration
	ResetAt    time.Time
	Outcome    Outcome
}

// Unlimited is the result for keys or rules that are not limited.
func Unlimited(rule Rule, now time.Time) Result {
	return Result{
		Allowed:   true,
		Remaining: max(rule.MaxRequests, 0),
		Limit:     rule.MaxRequests,
		ResetAt:   now,
		Outcome:   OutcomeAllowed,
	}
}
