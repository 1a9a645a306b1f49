package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"linebot-relay-go/pkg/log"
)

func exerciseMutualExclusion(t *testing.T, locker UserLocker) {
	t.Helper()

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "U1")
			require.NoError(t, err)
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxInside)
}

func TestLocalLocker_SerializesSameUser(t *testing.T) {
	exerciseMutualExclusion(t, NewLocalLocker())
}

func TestLocalLocker_DifferentUsersDoNotBlock(t *testing.T) {
	l := NewLocalLocker()
	unlockA, err := l.Lock(context.Background(), "A")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlockB, err := l.Lock(ctx, "B")
	require.NoError(t, err)
	unlockB()
}

func TestLocalLocker_ContextCancelled(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "A")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "A")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisLocker_SerializesSameUser(t *testing.T) {
	exerciseMutualExclusion(t, NewRedisLocker(newTestRedis(t), 5*time.Second))
}

func TestRedisLocker_UnlockReleasesKey(t *testing.T) {
	rdb := newTestRedis(t)
	l := NewRedisLocker(rdb, 5*time.Second)

	unlock, err := l.Lock(context.Background(), "U9")
	require.NoError(t, err)
	n, err := rdb.Exists(context.Background(), "relay:lock:user:U9").Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	unlock()
	n, err = rdb.Exists(context.Background(), "relay:lock:user:U9").Result()
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}

func TestRedisLocker_ReleaseFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	defer log.ReplaceLogger(zap.New(core))()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	l := NewRedisLocker(rdb, 5*time.Second)

	unlock, err := l.Lock(context.Background(), "U7")
	require.NoError(t, err)
	mr.Close()
	unlock()

	entries := logs.FilterMessage("failed to release user lock").All()
	require.Len(t, entries, 1)
	require.Equal(t, "U7", entries[0].ContextMap()["userID"])
}
