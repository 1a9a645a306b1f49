// Package lock 提供按用户维度的互斥锁，用于串行化同一用户的
// "解析 prompt → 写入用户消息 → 读取历史 → 调用模型 → 写入回复" 流程。
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"linebot-relay-go/pkg/log"
)

// ErrLockTimeout 表示在等待期限内未能获得锁。
var ErrLockTimeout = errors.New("lock: timed out waiting for user lock")

// UserLocker 为单个用户加锁，返回的 unlock 函数必须被调用。
type UserLocker interface {
	Lock(ctx context.Context, userID string) (unlock func(), err error)
}

// LocalLocker 是进程内实现，适用于单实例部署与测试。
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker 创建一个进程内的 UserLocker。
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*userLock)}
}

// Lock 阻塞直到获得 userID 的锁或 ctx 结束。
func (l *LocalLocker) Lock(ctx context.Context, userID string) (func(), error) {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{ch: make(chan struct{}, 1)}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	select {
	case ul.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(userID, ul)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-ul.ch
			l.release(userID, ul)
		})
	}, nil
}

func (l *LocalLocker) release(userID string, ul *userLock) {
	l.mu.Lock()
	ul.refs--
	if ul.refs == 0 {
		delete(l.locks, userID)
	}
	l.mu.Unlock()
}

// releaseScript 仅在 value 与持有者 token 一致时删除 key。
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker 基于 SET NX PX 实现跨实例的用户锁。
type RedisLocker struct {
	rdb       *redis.Client
	ttl       time.Duration
	retry     time.Duration
	keyPrefix string
}

// NewRedisLocker 创建 RedisLocker。ttl 应大于一次完整处理的最长耗时。
func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{
		rdb:       rdb,
		ttl:       ttl,
		retry:     50 * time.Millisecond,
		keyPrefix: "relay:lock:user:",
	}
}

// Lock 轮询获取锁，直到成功、ctx 结束或超过 ttl。
func (l *RedisLocker) Lock(ctx context.Context, userID string) (func(), error) {
	key := l.keyPrefix + userID
	owner := uuid.NewString()
	deadline := time.Now().Add(l.ttl)

	for {
		ok, err := l.rdb.SetNX(ctx, key, owner, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// 使用独立 context，请求取消后仍需释放锁
			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.rdb, []string{key}, owner).Err(); err != nil {
				log.Warnw("failed to release user lock", "userID", userID, "error", err)
			}
		})
	}, nil
}
