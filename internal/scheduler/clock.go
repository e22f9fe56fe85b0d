package scheduler

import (
	"sync"
	"time"

	"github.com/i474232898/ambient-display/internal/display"
)

// Clock is the on-screen wall clock. It is seeded once and then advanced by
// exactly one second per tick; the system clock is never re-read.
type Clock struct {
	mu      sync.Mutex
	current time.Time
	state   *display.State
}

// NewClock creates a clock starting at start.
func NewClock(state *display.State, start time.Time) *Clock {
	return &Clock{current: start, state: state}
}

// Publish renders the current time without advancing it.
func (c *Clock) Publish() {
	c.mu.Lock()
	now := c.current
	c.mu.Unlock()

	c.state.SetClock(now)
}

// Tick advances the clock by one second and renders it.
func (c *Clock) Tick() time.Time {
	c.mu.Lock()
	c.current = c.current.Add(time.Second)
	now := c.current
	c.mu.Unlock()

	c.state.SetClock(now)
	return now
}

// Now returns the displayed time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}
