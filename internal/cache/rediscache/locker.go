package rediscache

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ErrLockBusy is returned when the lock stays taken for the whole retry budget.
var ErrLockBusy = errors.New("lock busy")

// Locker hands out short-lived distributed locks.
type Locker struct {
	l       *redislock.Client
	backoff time.Duration
	retries int
}

func NewLocker(c *redis.Client) *Locker {
	return &Locker{
		l:       redislock.New(c),
		backoff: 50 * time.Millisecond,
		retries: 100,
	}
}

// Lock blocks until key is held or the retry budget runs out. The returned func releases it.
func (lk *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lock, err := lk.l.Obtain(ctx, key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(lk.backoff), lk.retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, errors.Wrapf(ErrLockBusy, "obtain %s", key)
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis lock")
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
