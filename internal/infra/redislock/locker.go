// Package redislock provides a best-effort Redis lease so periodic jobs run on
// one replica at a time.
package redislock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	metricsinfra "trailgate/internal/infra/metrics"
)

const defaultTTL = 30 * time.Second

var ErrUnavailable = errors.New("redis lock unavailable")

// Only the holder of the token may release the lease.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	client   *redis.Client
	logger   *slog.Logger
	metrics  *metricsinfra.Metrics
	newToken func() string
}

func New(client *redis.Client, logger *slog.Logger, metrics *metricsinfra.Metrics) *Locker {
	return &Locker{client: client, logger: logger, metrics: metrics, newToken: uuid.NewString}
}

// Acquire takes the lease on key for ttl. ok is false when another holder
// has it.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error) {
	if l == nil || l.client == nil {
		return "", false, ErrUnavailable
	}
	if key == "" {
		return "", false, errors.New("empty lock key")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	token = l.newToken()
	ok, err = l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		l.onRedisError(err)
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil || key == "" || token == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		l.onRedisError(err)
		return err
	}
	return nil
}

// Do runs fn while holding key. It reports false without calling fn when the
// lease is held elsewhere.
func (l *Locker) Do(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) (bool, error) {
	token, ok, err := l.Acquire(ctx, key, ttl)
	if err != nil || !ok {
		return false, err
	}
	defer func() {
		if err := l.Release(context.WithoutCancel(ctx), key, token); err != nil && l.logger != nil {
			l.logger.Warn("redis lock release failed", "key", key, "err", err)
		}
	}()
	return true, fn(ctx)
}

func (l *Locker) onRedisError(err error) {
	if l.logger != nil {
		l.logger.Warn("redis lock error", "err", err)
	}
	if l.metrics != nil {
		l.metrics.RedisDegraded.WithLabelValues("lock").Inc()
	}
}
