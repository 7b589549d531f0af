package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trailgate/internal/domain/ratelimit"
)

// Memory is a fixed-window limiter holding every key in process memory.
// Expiry is evaluated lazily on access; Sweep drops stale entries.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

type entry struct {
	count        int
	windowStart  time.Time
	blockedUntil time.Time
}

var _ ratelimit.Limiter = (*Memory)(nil)

// NewMemory creates an empty limiter. A nil now defaults to time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{entries: make(map[string]*entry), now: now}
}

func (l *Memory) Check(_ context.Context, key string, rule ratelimit.Rule) ratelimit.Result {
	now := l.now()
	if key == "" || !rule.Enabled() {
		return ratelimit.Unlimited(rule, now)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{windowStart: now}
		l.entries[key] = e
	}
	return e.check(now, rule)
}

func (l *Memory) Remaining(_ context.Context, key string, rule ratelimit.Rule) int {
	if key == "" || !rule.Enabled() {
		return max(rule.MaxRequests, 0)
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		return rule.MaxRequests
	}
	return e.remaining(now, rule)
}

func (l *Memory) Reset(_ context.Context, key string) {
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
}

func (l *Memory) Clear(_ context.Context) {
	l.mu.Lock()
	l.entries = make(map[string]*entry)
	l.mu.Unlock()
}

// Len returns the number of tracked keys.
func (l *Memory) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Sweep removes entries whose window started more than maxWindow ago and
// whose block, if any, has expired. It returns the number of removed keys.
func (l *Memory) Sweep(maxWindow time.Duration) int {
	now := l.now()
	removed := 0

	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.entries {
		if now.Sub(e.windowStart) >= maxWindow && !now.Before(e.blockedUntil) {
			delete(l.entries, k)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done. maxWindow should be at least
// the longest window of any rule used with this limiter. onSweep, when not
// nil, receives the number of keys still tracked after each pass.
func (l *Memory) Run(ctx context.Context, interval, maxWindow time.Duration, logger *slog.Logger, onSweep func(tracked int)) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			removed := l.Sweep(maxWindow)
			tracked := l.Len()
			if logger != nil && removed > 0 {
				logger.Debug("rate limit sweep", "removed", removed, "tracked", tracked)
			}
			if onSweep != nil {
				onSweep(tracked)
			}
		}
	}
}

func (e *entry) check(now time.Time, rule ratelimit.Rule) ratelimit.Result {
	if !e.blockedUntil.IsZero() {
		if now.Before(e.blockedUntil) {
			return ratelimit.Result{
				Limit:      rule.MaxRequests,
				RetryAfter: e.blockedUntil.Sub(now),
				ResetAt:    e.blockedUntil,
				Outcome:    ratelimit.OutcomeBlocked,
			}
		}
		e.blockedUntil = time.Time{}
		e.startWindow(now)
	}
	if now.Sub(e.windowStart) >= rule.Window {
		e.startWindow(now)
	}

	windowEnd := e.windowStart.Add(rule.Window)
	if e.count < rule.MaxRequests {
		e.count++
		return ratelimit.Result{
			Allowed:   true,
			Remaining: rule.MaxRequests - e.count,
			Limit:     rule.MaxRequests,
			ResetAt:   windowEnd,
			Outcome:   ratelimit.OutcomeAllowed,
		}
	}

	if rule.BlockDuration > 0 {
		e.blockedUntil = now.Add(rule.BlockDuration)
		return ratelimit.Result{
			Limit:      rule.MaxRequests,
			RetryAfter: rule.BlockDuration,
			ResetAt:    e.blockedUntil,
			Outcome:    ratelimit.OutcomeBlockStarted,
		}
	}

	return ratelimit.Result{
		Limit:      rule.MaxRequests,
		RetryAfter: windowEnd.Sub(now),
		ResetAt:    windowEnd,
		Outcome:    ratelimit.OutcomeLimited,
	}
}

func (e *entry) remaining(now time.Time, rule ratelimit.Rule) int {
	if !e.blockedUntil.IsZero() {
		if now.Before(e.blockedUntil) {
			return 0
		}
		return rule.MaxRequests
	}
	if now.Sub(e.windowStart) >= rule.Window {
		return rule.MaxRequests
	}
	return max(0, rule.MaxRequests-e.count)
}

func (e *entry) startWindow(now time.Time) {
	e.windowStart = now
	e.count = 0
}
