package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/garyjia/workflow-engine/internal/application/port"
)

// ErrLockNotHeld is returned by an UnlockFunc when the lock expired or was
// taken over before it was released.
var ErrLockNotHeld = errors.New("lock no longer held")

const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Redis implements port.InstanceLocker with SET NX PX so replicas sharing
// one Redis serialize transitions on the same instance.
type Redis struct {
	client   *backend.Client
	prefix   string
	interval time.Duration
}

// RedisOption configures a Redis locker
type RedisOption func(*Redis)

// WithRetryInterval sets how often a contended lock is retried
func WithRetryInterval(d time.Duration) RedisOption {
	return func(r *Redis) {
		r.interval = d
	}
}

// NewRedis creates a Redis locker; keys are stored as prefix + "lock:" + key
func NewRedis(client *backend.Client, prefix string, opts ...RedisOption) *Redis {
	r := &Redis{
		client:   client,
		prefix:   prefix,
		interval: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lock polls until the key is acquired or ctx is done
func (r *Redis) Lock(ctx context.Context, key string, ttl time.Duration) (port.UnlockFunc, error) {
	lockKey := r.prefix + "lock:" + key
	token := uuid.NewString()

	acquired, err := r.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error acquiring lock: %w", err)
	}

	if !acquired {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for !acquired {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
				acquired, err = r.client.SetNX(ctx, lockKey, token, ttl).Result()
				if err != nil {
					return nil, fmt.Errorf("redis error acquiring lock: %w", err)
				}
			}
		}
	}

	return func(ctx context.Context) error {
		deleted, err := r.client.Eval(ctx, unlockScript, []string{lockKey}, token).Int()
		if err != nil {
			return fmt.Errorf("redis error releasing lock: %w", err)
		}
		if deleted == 0 {
			return ErrLockNotHeld
		}
		return nil
	}, nil
}

// Ping implements port.HealthChecker
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

var (
	_ port.InstanceLocker = (*Redis)(nil)
	_ port.HealthChecker  = (*Redis)(nil)
)
