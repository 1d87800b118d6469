package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sweetshop:ratelimit:"

// Redis shares counters between every instance pointed at the same server.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Redis{client: client}, nil
}

func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	k := keyPrefix + key

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit.Redis.Allow: %w", err)
	}

	remaining := ttl.Val()
	// a fresh key, or one left without expiry by a crash between the two calls
	if remaining < 0 {
		if err := r.client.PExpire(ctx, k, window).Err(); err != nil {
			return Result{}, fmt.Errorf("ratelimit.Redis.Allow: %w", err)
		}
		remaining = window
	}

	return result(incr.Val(), limit, remaining), nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
