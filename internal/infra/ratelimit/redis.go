package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"trailgate/internal/config"
	"trailgate/internal/domain/ratelimit"
	metricsinfra "trailgate/internal/infra/metrics"
)

// checkScript applies one fixed-window check atomically. State lives in a
// hash: count, start (ms), blocked (ms, 0 when not blocked).
// Reply: {allowed, remaining, retry_ms, outcome, reset_ms}.
var checkScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local block = tonumber(ARGV[4])

local state = redis.call("HMGET", KEYS[1], "count", "start", "blocked")
local count = tonumber(state[1]) or 0
local start = tonumber(state[2]) or now
local blocked = tonumber(state[3]) or 0

if blocked > 0 then
	if now < blocked then
		return {0, 0, blocked - now, 2, blocked}
	end
	blocked = 0
	count = 0
	start = now
end
if now - start >= window then
	count = 0
	start = now
end

local allowed, remaining, retry, outcome, reset = 0, 0, 0, 1, start + window
if count < limit then
	count = count + 1
	allowed = 1
	remaining = limit - count
	outcome = 0
elseif block > 0 then
	blocked = now + block
	retry = block
	outcome = 3
	reset = blocked
else
	retry = start + window - now
end

redis.call("HSET", KEYS[1], "count", count, "start", start, "blocked", blocked)
local ttl = reset - now
if ttl < 1 then
	ttl = 1
end
redis.call("PEXPIRE", KEYS[1], ttl)
return {allowed, remaining, retry, outcome, reset}
`)

var scriptOutcomes = []ratelimit.Outcome{
	ratelimit.OutcomeAllowed,
	ratelimit.OutcomeLimited,
	ratelimit.OutcomeBlocked,
	ratelimit.OutcomeBlockStarted,
}

const clearScanCount = 500

// Redis shares counters between instances. Every Redis failure, including an
// open circuit breaker, degrades to the in-memory fallback for that call.
type Redis struct {
	client   *redis.Client
	prefix   string
	cb       *gobreaker.CircuitBreaker
	fallback *Memory
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metricsinfra.Metrics
}

var _ ratelimit.Limiter = (*Redis)(nil)

func NewRedis(client *redis.Client, prefix string, cbCfg config.CircuitBreakerConfig, fallback *Memory, logger *slog.Logger, metrics *metricsinfra.Metrics) *Redis {
	if fallback == nil {
		fallback = NewMemory(nil)
	}
	settings := gobreaker.Settings{
		Name:        "ratelimit-redis",
		MaxRequests: cbCfg.MaxRequests,
		Interval:    cbCfg.Interval,
		Timeout:     cbCfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			threshold := cbCfg.FailureThreshold
			if threshold == 0 {
				threshold = 5
			}
			return counts.ConsecutiveFailures >= threshold
		},
	}
	return &Redis{
		client:   client,
		prefix:   prefix,
		cb:       gobreaker.NewCircuitBreaker(settings),
		fallback: fallback,
		now:      fallback.now,
		logger:   logger,
		metrics:  metrics,
	}
}

func (l *Redis) Check(ctx context.Context, key string, rule ratelimit.Rule) ratelimit.Result {
	now := l.now()
	if key == "" || !rule.Enabled() {
		return ratelimit.Unlimited(rule, now)
	}
	if l.client == nil {
		return l.fallback.Check(ctx, key, rule)
	}

	out, err := l.execute(func() (any, error) {
		return checkScript.Run(ctx, l.client, []string{l.prefix + key},
			now.UnixMilli(),
			rule.MaxRequests,
			rule.Window.Milliseconds(),
			rule.BlockDuration.Milliseconds(),
		).Int64Slice()
	})
	if err != nil {
		l.onRedisError(err)
		return l.fallback.Check(ctx, key, rule)
	}

	res, err := decodeCheckReply(out.([]int64), rule)
	if err != nil {
		l.onRedisError(err)
		return l.fallback.Check(ctx, key, rule)
	}
	return res
}

func (l *Redis) Remaining(ctx context.Context, key string, rule ratelimit.Rule) int {
	if key == "" || !rule.Enabled() || l.client == nil {
		return l.fallback.Remaining(ctx, key, rule)
	}
	now := l.now()

	out, err := l.execute(func() (any, error) {
		return l.client.HMGet(ctx, l.prefix+key, "count", "start", "blocked").Result()
	})
	if err != nil {
		l.onRedisError(err)
		return l.fallback.Remaining(ctx, key, rule)
	}

	e, ok, err := decodeEntry(out.([]any))
	if err != nil {
		l.onRedisError(err)
		return l.fallback.Remaining(ctx, key, rule)
	}
	if !ok {
		return rule.MaxRequests
	}
	return e.remaining(now, rule)
}

func (l *Redis) Reset(ctx context.Context, key string) {
	l.fallback.Reset(ctx, key)
	if l.client == nil {
		return
	}
	if _, err := l.execute(func() (any, error) {
		return l.client.Del(ctx, l.prefix+key).Result()
	}); err != nil {
		l.onRedisError(err)
	}
}

// Clear deletes every key under the configured prefix.
func (l *Redis) Clear(ctx context.Context) {
	l.fallback.Clear(ctx)
	if l.client == nil {
		return
	}
	if _, err := l.execute(func() (any, error) {
		return nil, l.deleteByPrefix(ctx)
	}); err != nil {
		l.onRedisError(err)
	}
}

func (l *Redis) deleteByPrefix(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := l.client.Scan(ctx, cursor, l.prefix+"*", clearScanCount).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := l.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (l *Redis) execute(fn func() (any, error)) (any, error) {
	out, err := l.cb.Execute(fn)
	l.observeState()
	if err != nil && l.metrics != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			l.metrics.RateLimitBreakerOpen.Inc()
		}
	}
	return out, err
}

func (l *Redis) observeState() {
	if l.metrics == nil {
		return
	}
	switch l.cb.State() {
	case gobreaker.StateClosed:
		l.metrics.RateLimitBreakerState.Set(0)
	case gobreaker.StateHalfOpen:
		l.metrics.RateLimitBreakerState.Set(1)
	case gobreaker.StateOpen:
		l.metrics.RateLimitBreakerState.Set(2)
	}
}

func (l *Redis) onRedisError(err error) {
	if l.logger != nil {
		l.logger.Warn("redis limiter error, using memory fallback", "err", err)
	}
	if l.metrics != nil {
		l.metrics.RedisDegraded.WithLabelValues("ratelimit").Inc()
	}
}

func decodeCheckReply(vals []int64, rule ratelimit.Rule) (ratelimit.Result, error) {
	if len(vals) != 5 {
		return ratelimit.Result{}, fmt.Errorf("unexpected check reply length %d", len(vals))
	}
	code := vals[3]
	if code < 0 || int(code) >= len(scriptOutcomes) {
		return ratelimit.Result{}, fmt.Errorf("unexpected check outcome %d", code)
	}
	return ratelimit.Result{
		Allowed:    vals[0] == 1,
		Remaining:  int(vals[1]),
		Limit:      rule.MaxRequests,
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
		ResetAt:    time.UnixMilli(vals[4]).UTC(),
		Outcome:    scriptOutcomes[code],
	}, nil
}

// decodeEntry converts an HMGET reply into an entry; ok is false when the
// key does not exist.
func decodeEntry(fields []any) (*entry, bool, error) {
	if len(fields) != 3 || fields[0] == nil {
		return nil, false, nil
	}
	nums := make([]int64, 3)
	for i, f := range fields {
		if f == nil {
			continue
		}
		s, ok := f.(string)
		if !ok {
			return nil, false, fmt.Errorf("unexpected field type %T", f)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("parse field %d: %w", i, err)
		}
		nums[i] = n
	}
	e := &entry{count: int(nums[0]), windowStart: time.UnixMilli(nums[1])}
	if nums[2] > 0 {
		e.blockedUntil = time.UnixMilli(nums[2])
	}
	return e, true, nil
}
