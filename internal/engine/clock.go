package engine

import (
	"sync"
	"time"
)

// Clock supplies the current instant.
type Clock func() time.Time

// ClockOrDefault returns clock, or time.Now when clock is nil.
func ClockOrDefault(clock Clock) Clock {
	if clock == nil {
		return time.Now
	}
	return clock
}

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a ManualClock fixed at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current manual instant.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by delta and returns the new instant.
func (c *ManualClock) Advance(delta time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(delta)
	return c.now
}

// Set moves the clock to instant.
func (c *ManualClock) Set(instant time.Time) {
	c.mu.Lock()
	c.now = instant
	c.mu.Unlock()
}
