package ratelimit

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFixedWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory().WithClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := m.Allow(ctx, "auth:1.2.3.4", 5, 15*time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i+1)
		assert.Equal(t, 4-i, res.Remaining)
	}

	res, err := m.Allow(ctx, "auth:1.2.3.4", 5, 15*time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 15*time.Minute, res.RetryAfter)

	// other keys are unaffected
	res, err = m.Allow(ctx, "auth:5.6.7.8", 5, 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	now = now.Add(15 * time.Minute)
	res, err = m.Allow(ctx, "auth:1.2.3.4", 5, 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.Remaining)
}

func TestMemorySweepsExpiredBuckets(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory().WithClock(func() time.Time { return now })

	for i := 0; i < 10; i++ {
		_, err := m.Allow(context.Background(), fmt.Sprintf("k%d", i), 1, time.Second)
		require.NoError(t, err)
	}
	assert.Len(t, m.buckets, 10)

	now = now.Add(2 * time.Minute)
	_, err := m.Allow(context.Background(), "fresh", 1, time.Second)
	require.NoError(t, err)
	assert.Len(t, m.buckets, 1)
}

func newTestRedis(t *testing.T) *Redis {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisFromClient(client)
}

func TestRedisFixedWindow(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	key := fmt.Sprintf("test:%d", time.Now().UnixNano())
	t.Cleanup(func() { r.client.Del(context.Background(), keyPrefix+key) })

	for i := 0; i < 3; i++ {
		res, err := r.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := r.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, time.Minute)
}
