package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// EventRepository 记录已处理的 webhook 事件，用于识别平台重投。
type EventRepository interface {
	// MarkSeen 首次见到 eventID 时返回 true。
	MarkSeen(ctx context.Context, eventID string) (bool, error)
	// Forget 撤销 MarkSeen，使平台重投的同一事件可以再次处理。
	Forget(ctx context.Context, eventID string) error
}

type redisEventRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewEventRepository 创建基于 Redis 的 EventRepository。
func NewEventRepository(redisClient *redis.Client, ttl time.Duration) EventRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &redisEventRepository{redisClient: redisClient, ttl: ttl}
}

func eventKey(eventID string) string {
	return fmt.Sprintf("relay:event:%s", eventID)
}

func (r *redisEventRepository) MarkSeen(ctx context.Context, eventID string) (bool, error) {
	ok, err := r.redisClient.SetNX(ctx, eventKey(eventID), 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark webhook event: %w", err)
	}
	return ok, nil
}

func (r *redisEventRepository) Forget(ctx context.Context, eventID string) error {
	if err := r.redisClient.Del(ctx, eventKey(eventID)).Err(); err != nil {
		return fmt.Errorf("failed to forget webhook event: %w", err)
	}
	return nil
}
