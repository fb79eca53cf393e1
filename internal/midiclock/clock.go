// Package midiclock implements the sample-rate-denominated monotonic
// clock timestamps are drawn from. It is named midiclock, not clock, to
// avoid colliding with stdlib-adjacent identifiers elsewhere in the tree.
package midiclock

import (
	"sync"
	"time"
)

// DefaultRate is 44.1 kHz.
const DefaultRate = 44100

// Clock is a monotonic, tick-denominated clock. now() is derived from a
// wall-clock source (time.Now) plus a rebase offset; the offset lets
// set_now retarget the clock's origin without touching the underlying
// wall-clock reads.
type Clock struct {
	mu     sync.Mutex
	rate   int64
	origin time.Time // wall-clock instant corresponding to tick 0 + offset
	offset int64     // ticks added atop the wall-clock-derived tick count
}

// New returns a clock sampling at rate ticks/second (clamped to
// 8 kHz-192 kHz), with now() starting at tick 0.
func New(rate int) *Clock {
	if rate < 8000 {
		rate = 8000
	}
	if rate > 192000 {
		rate = 192000
	}
	return &Clock{rate: int64(rate), origin: time.Now()}
}

// Default returns a clock at DefaultRate.
func Default() *Clock { return New(DefaultRate) }

// Rate returns the clock's sampling rate in ticks/second.
func (c *Clock) Rate() int64 { return c.rate }

// Now returns the current tick.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickLocked(time.Now())
}

func (c *Clock) tickLocked(wall time.Time) int64 {
	elapsed := wall.Sub(c.origin)
	return int64(elapsed.Seconds()*float64(c.rate)) + c.offset
}

// SetNow adjusts the clock's offset so that an immediately following Now
// call returns approximately t.
func (c *Clock) SetNow(t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw := c.tickLocked(time.Now()) - c.offset
	c.offset = t - raw
}

// ToSeconds converts a tick count to seconds.
func (c *Clock) ToSeconds(ticks int64) float64 {
	return float64(ticks) / float64(c.rate)
}

// FromSeconds converts seconds to a tick count, truncating toward zero.
func (c *Clock) FromSeconds(seconds float64) int64 {
	return int64(seconds * float64(c.rate))
}

// Convert translates a tick count from c's rate/origin to other's, by
// composing their offsets and rates.
func (c *Clock) Convert(ticks int64, other *Clock) int64 {
	seconds := c.ToSeconds(ticks - c.offset)
	wallInstant := c.origin.Add(time.Duration(seconds * float64(time.Second)))
	otherElapsed := wallInstant.Sub(other.origin)
	return int64(otherElapsed.Seconds()*float64(other.rate)) + other.offset
}

var (
	globalMu    sync.Mutex
	globalClock *Clock
)

// Global returns the process-wide singleton clock, creating it at
// DefaultRate on first use.
func Global() *Clock {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalClock == nil {
		globalClock = Default()
	}
	return globalClock
}
