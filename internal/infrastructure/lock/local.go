// Package lock provides port.InstanceLocker implementations.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/garyjia/workflow-engine/internal/application/port"
)

// Local is an in-process keyed mutex. The ttl argument is ignored since a
// lock can only be orphaned by the process that holds it.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates a new in-process locker
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// Lock blocks until key is free or ctx is done
func (l *Local) Lock(ctx context.Context, key string, _ time.Duration) (port.UnlockFunc, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-s.ch
			l.release(key, s)
		})
		return nil
	}, nil
}

// release drops a reference and forgets the slot once nobody waits on it
func (l *Local) release(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// held returns the number of keys currently tracked
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

var _ port.InstanceLocker = (*Local)(nil)
