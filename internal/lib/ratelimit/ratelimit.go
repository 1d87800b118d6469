// Package ratelimit counts requests per key in fixed windows.
package ratelimit

import (
	"context"
	"time"
)

type Result struct {
	Allowed   bool
	Remaining int
	// RetryAfter is how long until the current window resets.
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

func result(count int64, limit int, ttl time.Duration) Result {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:    count <= int64(limit),
		Remaining:  remaining,
		RetryAfter: ttl,
	}
}
