package testutil

import "sync"

// Clock hands out strictly increasing created_at values.
//
// Thread-safety: safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now int64
}

// NewClock returns a clock whose first Next() is start.
func NewClock(start int64) *Clock {
	return &Clock{now: start - 1}
}

// Next advances the clock by one second and returns it.
func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now++
	return c.now
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
