package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type lockError struct{}

func (lockError) Error() string { return "submission lock not acquired" }

func (lockError) UserMessage() string {
	return "This slot is currently being booked, please retry shortly"
}

var ErrLockNotAcquired error = lockError{}

// SubmitLocker holds a Redis key for the duration of one booking submission so two
// clients cannot submit the same slot or appointment at once.
type SubmitLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSubmitLocker(client *redis.Client, ttl time.Duration) *SubmitLocker {
	return &SubmitLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *SubmitLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	key = "lock:" + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire submission lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *SubmitLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release submission lock: %w", err)
	}
	return nil
}
