// Package lock serializes work on a ticket or an organization's analysis job.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotAcquired is returned by Acquire when the wait budget runs out.
	ErrNotAcquired = errors.New("lock: not acquired")
	// ErrLeaseLost is the cancellation cause of a KeepAlive context whose lease
	// expired or was taken over.
	ErrLeaseLost = errors.New("lock: lease lost")
)

// Lease is a held lock on one key.
type Lease struct {
	key     string
	release func(ctx context.Context) error
	refresh func(ctx context.Context, ttl time.Duration) (bool, error)
}

// Key returns the locked key.
func (l *Lease) Key() string {
	return l.key
}

// Release frees the lease. Releasing an expired or stolen lease is a no-op.
func (l *Lease) Release(ctx context.Context) error {
	return l.release(ctx)
}

// Refresh extends the lease to ttl from now. ok is false when the lease
// already expired or another holder owns the key.
func (l *Lease) Refresh(ctx context.Context, ttl time.Duration) (bool, error) {
	return l.refresh(ctx, ttl)
}

// Locker hands out mutually exclusive leases on string keys.
type Locker interface {
	// Acquire blocks until the key is free, ctx is done, or the wait budget elapses.
	Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error)
	// TryAcquire returns immediately; ok is false when the key is held.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Lease, bool, error)
}

// KeepAlive refreshes the lease every ttl/3 until stop is called. The returned
// context is cancelled with ErrLeaseLost once the lease can no longer be
// vouched for, so work running under it stops before writing on a lapsed lock.
// stop does not release the lease.
func KeepAlive(ctx context.Context, lease *Lease, ttl time.Duration) (context.Context, func()) {
	held, cancel := context.WithCancelCause(ctx)
	interval := ttl / 3
	if interval <= 0 {
		interval = time.Millisecond
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		confirmed := time.Now()
		for {
			select {
			case <-done:
				return
			case <-held.Done():
				return
			case <-ticker.C:
			}
			ok, err := lease.Refresh(held, ttl)
			switch {
			case err == nil && ok:
				confirmed = time.Now()
			case err == nil && !ok:
				cancel(ErrLeaseLost)
				return
			case time.Since(confirmed) >= ttl:
				// refresh kept failing until the lease could have expired
				cancel(ErrLeaseLost)
				return
			}
		}
	}()

	var once sync.Once
	return held, func() {
		once.Do(func() {
			close(done)
			wg.Wait()
			cancel(nil)
		})
	}
}

// TicketKey is the lock key for a ticket.
func TicketKey(ticketID string) string {
	return "lock:ticket:" + ticketID
}

// AnalysisKey is the lock key for an organization's analysis job.
func AnalysisKey(orgID string) string {
	return "lock:analysis:" + orgID
}

const (
	retryInterval = 25 * time.Millisecond
	maxWait       = 10 * time.Second
)

// acquireLoop retries try until it succeeds or the wait budget runs out.
func acquireLoop(ctx context.Context, try func() (*Lease, bool, error)) (*Lease, error) {
	deadline := time.Now().Add(maxWait)
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()
	for {
		lease, ok, err := try()
		if err != nil {
			return nil, err
		}
		if ok {
			return lease, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
