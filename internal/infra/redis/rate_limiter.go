package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter counts events in a rolling window via INCR+EXPIRE. It caps job
// starts per window across every worker of every process, mirroring the rate
// limit of the remote text-generation service.
type RateLimiter struct {
	client Client
}

func NewRateLimiter(client Client) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

// JobStartKey buckets job starts into the current window so the count resets
// even if EXPIRE is lost between INCR and Expire.
func JobStartKey(window time.Duration, now time.Time) string {
	return fmt.Sprintf("rate_limit:job_starts:%d", now.UnixNano()/int64(window))
}
