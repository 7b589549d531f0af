package redislock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	metricsinfra "trailgate/internal/infra/metrics"
)

const testKey = "trailgate:lock:violation-retention"

func newTestLocker(t *testing.T) (*Locker, redismock.ClientMock, *metricsinfra.Metrics) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	metrics := metricsinfra.New()
	l := New(client, nil, metrics)
	l.newToken = func() string { return "tok" }
	return l, mock, metrics
}

func TestDo_RunsAndReleases(t *testing.T) {
	l, mock, _ := newTestLocker(t)
	mock.ExpectSetNX(testKey, "tok", time.Minute).SetVal(true)
	mock.ExpectEvalSha(releaseScript.Hash(), []string{testKey}, "tok").SetVal(int64(1))

	called := false
	ran, err := l.Do(context.Background(), testKey, time.Minute, func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.True(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDo_SkipsWhenHeldElsewhere(t *testing.T) {
	l, mock, _ := newTestLocker(t)
	mock.ExpectSetNX(testKey, "tok", time.Minute).SetVal(false)

	ran, err := l.Do(context.Background(), testKey, time.Minute, func(context.Context) error {
		t.Fatal("fn must not run without the lease")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDo_PropagatesFnError(t *testing.T) {
	l, mock, _ := newTestLocker(t)
	mock.ExpectSetNX(testKey, "tok", defaultTTL).SetVal(true)
	mock.ExpectEvalSha(releaseScript.Hash(), []string{testKey}, "tok").SetVal(int64(1))

	boom := errors.New("delete failed")
	ran, err := l.Do(context.Background(), testKey, 0, func(context.Context) error { return boom })
	assert.True(t, ran)
	assert.ErrorIs(t, err, boom)
}

func TestAcquire_RedisErrorCountsDegradation(t *testing.T) {
	l, mock, metrics := newTestLocker(t)
	mock.ExpectSetNX(testKey, "tok", time.Minute).SetErr(errors.New("connection refused"))

	_, ok, err := l.Acquire(context.Background(), testKey, time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RedisDegraded.WithLabelValues("lock")))
}

func TestAcquire_Unavailable(t *testing.T) {
	var l *Locker
	_, _, err := l.Acquire(context.Background(), testKey, time.Minute)
	assert.ErrorIs(t, err, ErrUnavailable)
}
