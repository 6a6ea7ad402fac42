package lock

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerExcludesSecondHolder(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	lease, ok, err := l.TryAcquire(ctx, AnalysisKey("org-1"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, AnalysisKey("org-1"), lease.Key())

	_, ok, err = l.TryAcquire(ctx, AnalysisKey("org-1"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = l.TryAcquire(ctx, AnalysisKey("org-2"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, lease.Release(ctx))
	_, ok, err = l.TryAcquire(ctx, AnalysisKey("org-1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLockerExpiresLeases(t *testing.T) {
	l := NewLocalLocker()
	now := time.Now()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	stale, ok, _ := l.TryAcquire(ctx, "k", time.Second)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, _ = l.TryAcquire(ctx, "k", time.Second)
	require.True(t, ok)

	// the expired holder must not free the new lease
	require.NoError(t, stale.Release(ctx))
	refreshed, err := stale.Refresh(ctx, time.Second)
	require.NoError(t, err)
	assert.False(t, refreshed)
	_, ok, _ = l.TryAcquire(ctx, "k", time.Second)
	assert.False(t, ok)
}

func TestLocalLockerAcquireSerializes(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := l.Acquire(ctx, TicketKey("t-1"), time.Minute)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			_ = lease.Release(ctx)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestLocalLockerAcquireHonorsContext(t *testing.T) {
	l := NewLocalLocker()
	_, ok, _ := l.TryAcquire(context.Background(), "k", time.Minute)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := l.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()
	key := AnalysisKey("lock-test-" + time.Now().Format("150405.000"))
	l := NewRedisLocker(client)

	lease, ok, err := l.TryAcquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryAcquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	refreshed, err := lease.Refresh(ctx, 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Greater(t, client.PTTL(ctx, key).Val(), time.Minute)

	require.NoError(t, lease.Release(ctx))
	refreshed, err = lease.Refresh(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, refreshed)

	lease, ok, err = l.TryAcquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, lease.Release(ctx))
}

func TestLocalLockerRefreshExtendsLease(t *testing.T) {
	l := NewLocalLocker()
	now := time.Now()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	lease, ok, _ := l.TryAcquire(ctx, "k", time.Second)
	require.True(t, ok)

	now = now.Add(900 * time.Millisecond)
	refreshed, err := lease.Refresh(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, refreshed)

	now = now.Add(900 * time.Millisecond)
	_, ok, _ = l.TryAcquire(ctx, "k", time.Second)
	assert.False(t, ok, "refreshed lease is still held")
}

func TestKeepAliveHoldsLeasePastTTL(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()
	ttl := 60 * time.Millisecond

	lease, ok, _ := l.TryAcquire(ctx, "k", ttl)
	require.True(t, ok)
	held, stop := KeepAlive(ctx, lease, ttl)

	time.Sleep(4 * ttl)
	_, ok, _ = l.TryAcquire(ctx, "k", ttl)
	assert.False(t, ok)
	assert.NoError(t, held.Err())

	stop()
	stop()
	assert.ErrorIs(t, held.Err(), context.Canceled)
	assert.NotErrorIs(t, context.Cause(held), ErrLeaseLost)
	require.NoError(t, lease.Release(ctx))
}

func TestKeepAliveCancelsWhenLeaseIsTakenOver(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()
	ttl := 60 * time.Millisecond

	ours, ok, _ := l.TryAcquire(ctx, "k", ttl)
	require.True(t, ok)
	held, stop := KeepAlive(ctx, ours, ttl)
	defer stop()

	l.mu.Lock()
	l.leases["k"] = lease{token: "someone-else", expires: time.Now().Add(time.Minute)}
	l.mu.Unlock()

	assert.Eventually(t, func() bool { return held.Err() != nil }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, context.Cause(held), ErrLeaseLost)
}
