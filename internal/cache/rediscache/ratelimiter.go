package rediscache

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter counts hits per subject in fixed windows aligned to the wall clock.
type RateLimiter struct {
	c      *redis.Client
	prefix string
	now    func() time.Time
}

func NewRateLimiter(addr, prefix string) *RateLimiter {
	return NewRateLimiterFromClient(NewClient(addr), prefix)
}

func NewRateLimiterFromClient(c *redis.Client, prefix string) *RateLimiter {
	return &RateLimiter{c: c, prefix: prefix, now: time.Now}
}

func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	rl.now = now
	return rl
}

// Allow counts one hit for subject in the current window. It reports whether the hit
// is within limit and how long until the window resets.
func (rl *RateLimiter) Allow(ctx context.Context, subject string, limit int64, window time.Duration) (bool, time.Duration, error) {
	now := rl.now().UTC()
	start := now.Truncate(window)
	key := rl.prefix + ":" + subject + ":" + strconv.FormatInt(start.Unix(), 10)

	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window+10*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	return incr.Val() <= limit, start.Add(window).Sub(now), nil
}
