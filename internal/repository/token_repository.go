package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// TokenBlacklist 保存已登出的管理员 token，直到其自然过期。
type TokenBlacklist interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
	Contains(ctx context.Context, token string) (bool, error)
}

type redisTokenBlacklist struct {
	redisClient *redis.Client
}

// NewTokenBlacklist 创建基于 Redis 的 TokenBlacklist。
func NewTokenBlacklist(redisClient *redis.Client) TokenBlacklist {
	return &redisTokenBlacklist{redisClient: redisClient}
}

func (r *redisTokenBlacklist) Add(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.redisClient.Set(ctx, "relay:blacklist:"+token, "true", ttl).Err()
}

func (r *redisTokenBlacklist) Contains(ctx context.Context, token string) (bool, error) {
	n, err := r.redisClient.Exists(ctx, "relay:blacklist:"+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
