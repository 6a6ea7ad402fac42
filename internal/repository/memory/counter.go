package memory

import (
	"context"
	"sync"
)

// Counter keeps per-organization resolved-ticket counts when redis is not in use.
type Counter struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewCounter creates an empty counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int64)}
}

// IncrResolved bumps and returns the organization's count.
func (c *Counter) IncrResolved(_ context.Context, orgID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[orgID]++
	return c.counts[orgID], nil
}

// ResetResolved clears the organization's count.
func (c *Counter) ResetResolved(_ context.Context, orgID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, orgID)
	return nil
}
