package lock

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := Config{
		TTL:           time.Second,
		Wait:          50 * time.Millisecond,
		RetryInterval: 5 * time.Millisecond,
	}
	return New(rdb, cfg, log), mr
}

func TestLockAcquireRelease(t *testing.T) {
	l, mr := newTestLock(t)
	ctx := context.Background()

	token, err := l.Acquire(ctx, "cart-lock-a")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.True(t, mr.Exists("cart-lock-a"))

	require.NoError(t, l.Release(ctx, "cart-lock-a", token))
	assert.False(t, mr.Exists("cart-lock-a"))

	// Free again, so a new holder gets in without waiting.
	_, err = l.Acquire(ctx, "cart-lock-a")
	require.NoError(t, err)
}

func TestLockContention(t *testing.T) {
	l, _ := newTestLock(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "cart-lock-b")
	require.NoError(t, err)

	start := time.Now()
	_, err = l.Acquire(ctx, "cart-lock-b")
	require.ErrorIs(t, err, ErrAlreadyLocked)
	assert.Less(t, time.Since(start), time.Second, "bounded wait should give up quickly")
}

func TestLockWaitsForRelease(t *testing.T) {
	l, _ := newTestLock(t)
	ctx := context.Background()

	token, err := l.Acquire(ctx, "cart-lock-c")
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		l.Release(context.Background(), "cart-lock-c", token)
	}()

	// The retry loop should pick the key up once the holder lets go.
	_, err = l.Acquire(ctx, "cart-lock-c")
	require.NoError(t, err)
}

func TestLockReleaseExpiredIsNoOp(t *testing.T) {
	l, mr := newTestLock(t)
	ctx := context.Background()

	token, err := l.Acquire(ctx, "cart-lock-d")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists("cart-lock-d"))

	assert.NoError(t, l.Release(ctx, "cart-lock-d", token))
}

func TestLockStaleHolderCannotReleaseCurrent(t *testing.T) {
	l, mr := newTestLock(t)
	ctx := context.Background()
	key := "cart-lock-e"

	// A takes the lock and outlives its TTL.
	tokenA, err := l.Acquire(ctx, key)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	// B re-acquires the expired key.
	tokenB, err := l.Acquire(ctx, key)
	require.NoError(t, err)

	// A's late release must not free B's lock.
	require.NoError(t, l.Release(ctx, key, tokenA))
	require.True(t, mr.Exists(key), "stale release removed the current holder's lock")

	_, err = l.Acquire(ctx, key)
	require.ErrorIs(t, err, ErrAlreadyLocked)

	// B's own token still works.
	require.NoError(t, l.Release(ctx, key, tokenB))
	assert.False(t, mr.Exists(key))
}

func TestLockReleaseWrongTokenIsNoOp(t *testing.T) {
	l, mr := newTestLock(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "cart-lock-f")
	require.NoError(t, err)

	require.NoError(t, l.Release(ctx, "cart-lock-f", "not-the-token"))
	require.NoError(t, l.Release(ctx, "cart-lock-f", ""))
	assert.True(t, mr.Exists("cart-lock-f"))
}
