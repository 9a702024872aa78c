package idempotency

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestStore_Seen(t *testing.T) {
	_, rdb := newRedis(t)
	s := NewStore(rdb, time.Hour)
	ctx := context.Background()
	key := s.Key("payment", "tx-41")

	assert.Equal(t, "idem:payment:tx-41", key)

	seen, err := s.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = s.Seen(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, s.Forget(ctx, key))
	seen, err = s.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestStore_SeenExpires(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewStore(rdb, time.Minute)
	ctx := context.Background()

	_, err := s.Seen(ctx, "k")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	seen, err := s.Seen(ctx, "k")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisLocker_ExclusiveUntilUnlocked(t *testing.T) {
	_, rdb := newRedis(t)
	l := NewRedisLocker(rdb, time.Minute, 50*time.Millisecond)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "checkout:cart-1")
	require.NoError(t, err)

	_, err = l.Lock(ctx, "checkout:cart-1")
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	other, err := l.Lock(ctx, "checkout:cart-2")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, unlock(ctx))
	again, err := l.Lock(ctx, "checkout:cart-1")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestRedisLocker_StaleUnlockDoesNotReleaseNewOwner(t *testing.T) {
	mr, rdb := newRedis(t)
	l := NewRedisLocker(rdb, time.Second, 10*time.Millisecond)
	ctx := context.Background()

	first, err := l.Lock(ctx, "k")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	second, err := l.Lock(ctx, "k")
	require.NoError(t, err)

	require.NoError(t, first(ctx))
	assert.True(t, mr.Exists("lock:k"))
	require.NoError(t, second(ctx))
	assert.False(t, mr.Exists("lock:k"))
}

func TestLocalLocker_SerializesHolders(t *testing.T) {
	l := NewLocalLocker(time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "cart")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			_ = unlock(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestLocalLocker_TimesOut(t *testing.T) {
	l := NewLocalLocker(20 * time.Millisecond)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "cart")
	require.NoError(t, err)
	defer func() { _ = unlock(ctx) }()

	_, err = l.Lock(ctx, "cart")
	assert.ErrorIs(t, err, ErrLockNotAcquired)
}

func TestLocalLocker_DropsIdleSlots(t *testing.T) {
	l := NewLocalLocker(20 * time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		unlock, err := l.Lock(ctx, fmt.Sprintf("cart-%d", i))
		require.NoError(t, err)
		require.NoError(t, unlock(ctx))
	}
	assert.Empty(t, l.slots)

	unlock, err := l.Lock(ctx, "cart")
	require.NoError(t, err)
	_, err = l.Lock(ctx, "cart")
	require.ErrorIs(t, err, ErrLockNotAcquired)
	assert.Len(t, l.slots, 1)

	require.NoError(t, unlock(ctx))
	require.NoError(t, unlock(ctx))
	assert.Empty(t, l.slots)
}
