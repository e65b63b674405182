package lock

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newRedisLocker(t *testing.T, wait time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, 10*time.Second, wait, nil), mr
}

func TestRedis_AcquireAndRelease(t *testing.T) {
	l, mr := newRedisLocker(t, 50*time.Millisecond)

	release, err := l.Acquire(context.Background(), "booking:7:2024-11-24T15")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:booking:7:2024-11-24T15"))

	_, err = l.Acquire(context.Background(), "booking:7:2024-11-24T15")
	require.ErrorIs(t, err, ErrTimeout)

	release()
	assert.False(t, mr.Exists("lock:booking:7:2024-11-24T15"))

	again, err := l.Acquire(context.Background(), "booking:7:2024-11-24T15")
	require.NoError(t, err)
	again()
}

func TestRedis_ReleaseKeepsForeignToken(t *testing.T) {
	l, mr := newRedisLocker(t, 50*time.Millisecond)

	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)

	// ключ истёк и его занял другой владелец
	mr.FastForward(11 * time.Second)
	require.NoError(t, mr.Set("lock:k", "someone-else"))

	release()

	value, err := mr.Get("lock:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", value)
}

func TestRedis_TTLApplied(t *testing.T) {
	l, mr := newRedisLocker(t, 50*time.Millisecond)

	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	assert.Equal(t, 10*time.Second, mr.TTL("lock:k"))
}

func TestRedis_ReleaseAfterExpiryWarns(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	core, logs := observer.New(zap.WarnLevel)
	l := NewRedis(client, 10*time.Second, 50*time.Millisecond, zap.New(core))

	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)

	mr.FastForward(11 * time.Second)
	require.False(t, mr.Exists("lock:k"))

	release()

	entries := logs.FilterMessage("Lock expired before release").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "k", entries[0].ContextMap()["key"])
}

func TestRedis_ReleaseInTimeDoesNotWarn(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	core, logs := observer.New(zap.WarnLevel)
	l := NewRedis(client, 10*time.Second, 50*time.Millisecond, zap.New(core))

	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release()

	assert.Zero(t, logs.Len())
}
