package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "gameserver:throttle:"

// Redis is a fixed-window Limiter shared by every server using the same
// Redis instance.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedis creates a Redis-backed Limiter.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	limiter := throttle.NewRedis(client, 5, time.Minute)
func NewRedis(client *redis.Client, limit int, window time.Duration) *Redis {
	return &Redis{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Allow implements Limiter. The first connection of a window starts the
// key's expiry.
func (r *Redis) Allow(ctx context.Context, addr string) (bool, error) {
	if r.limit <= 0 {
		return true, nil
	}

	key := redisKeyPrefix + hostOf(addr)
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis incr error: %w", err)
	}

	if n == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			return false, fmt.Errorf("redis expire error: %w", err)
		}
	}

	return n <= int64(r.limit), nil
}
