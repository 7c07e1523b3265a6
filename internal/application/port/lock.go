package port

import (
	"context"
	"time"
)

// UnlockFunc releases a lock acquired by InstanceLocker.Lock
type UnlockFunc func(ctx context.Context) error

// InstanceLocker serializes read-validate-write cycles on a single instance,
// within one process or across replicas.
type InstanceLocker interface {
	// Lock blocks until key is held or ctx is done. The lock expires after
	// ttl if never released. The returned UnlockFunc must be called.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
