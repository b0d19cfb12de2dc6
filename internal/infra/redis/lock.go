package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another process holds the sync lock.
var ErrLockHeld = errors.New("sync lock held by another process")

// ErrLockLost is returned when the lock expired or was taken over.
var ErrLockLost = errors.New("sync lock lost")

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Lock is a process-level mutual exclusion lock owned by one sync run.
type Lock struct {
	client *Client
	key    string
	token  string
	ttl    time.Duration
}

// AcquireLock takes the sync lock for ttl. It fails with ErrLockHeld when
// another run owns it.
func (c *Client) AcquireLock(ctx context.Context, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, c.lockKey(), token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("setnx failed: %w", err)
	}
	if !ok {
		holder, _ := c.rdb.Get(ctx, c.lockKey()).Result()
		return nil, fmt.Errorf("%w (holder %s)", ErrLockHeld, holder)
	}
	return &Lock{client: c, key: c.lockKey(), token: token, ttl: ttl}, nil
}

// Token identifies the run owning the lock.
func (l *Lock) Token() string { return l.token }

// Refresh extends the lock TTL if it is still owned.
func (l *Lock) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, l.client.rdb, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

// Release drops the lock if it is still owned.
func (l *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client.rdb, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release failed: %w", err)
	}
	return nil
}
