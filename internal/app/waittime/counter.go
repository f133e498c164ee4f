// Package waittime implements the ticker that measures how long a user has
// been waiting for a responder.
package waittime

import (
	"sync"
	"time"

	"github.com/PabloGalante/farum-sos/internal/clock"
)

const DefaultPeriod = time.Second

// Counter invokes its tick function once per period until stopped. At most one
// ticker is live per Counter: Start replaces any running one.
type Counter struct {
	clock  clock.Clock
	period time.Duration

	mu    sync.Mutex
	timer clock.Timer
	gen   uint64
}

func New(clk clock.Clock, period time.Duration) *Counter {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Counter{
		clock:  clk,
		period: period,
	}
}

// Start stops a running ticker, then schedules tick every period.
func (c *Counter) Start(tick func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.gen++
	gen := c.gen
	c.timer = c.clock.TickFunc(c.period, func() {
		// A tick already in flight when Stop ran must not count.
		c.mu.Lock()
		live := c.timer != nil && c.gen == gen
		c.mu.Unlock()
		if live {
			tick()
		}
	})
}

// Stop cancels the ticker. Stopping an idle counter is a no-op that returns false.
func (c *Counter) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *Counter) stopLocked() bool {
	if c.timer == nil {
		return false
	}
	c.timer.Stop()
	c.timer = nil
	c.gen++
	return true
}

func (c *Counter) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}
