package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type lease struct {
	token   string
	expires time.Time
}

// LocalLocker is an in-process Locker for single-instance deployments and tests.
type LocalLocker struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

// NewLocalLocker creates an empty in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{leases: make(map[string]lease), now: time.Now}
}

// TryAcquire implements Locker.
func (l *LocalLocker) TryAcquire(_ context.Context, key string, ttl time.Duration) (*Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.leases[key]; ok && now.Before(held.expires) {
		return nil, false, nil
	}
	token := uuid.NewString()
	l.leases[key] = lease{token: token, expires: now.Add(ttl)}

	return &Lease{
		key: key,
		release: func(context.Context) error {
			l.mu.Lock()
			defer l.mu.Unlock()
			if held, ok := l.leases[key]; ok && held.token == token {
				delete(l.leases, key)
			}
			return nil
		},
		refresh: func(_ context.Context, ttl time.Duration) (bool, error) {
			l.mu.Lock()
			defer l.mu.Unlock()
			now := l.now()
			held, ok := l.leases[key]
			if !ok || held.token != token || !now.Before(held.expires) {
				return false, nil
			}
			l.leases[key] = lease{token: token, expires: now.Add(ttl)}
			return true, nil
		},
	}, true, nil
}

// Acquire implements Locker.
func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	return acquireLoop(ctx, func() (*Lease, bool, error) {
		return l.TryAcquire(ctx, key, ttl)
	})
}
