package scheduler

import (
	"sync/atomic"
	"time"
)

// Clock is the scheduler's time source: a millisecond counter that only moves
// forward and wraps at 2^32.
type Clock interface {
	Millis() uint32
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() uint32

func (f ClockFunc) Millis() uint32 { return f() }

// SystemClock counts milliseconds since it was created, truncated to 32 bits
// (it rolls over after ~49.7 days).
type SystemClock struct {
	start time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Millis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

// ManualClock is a settable Clock for tests and simulations.
type ManualClock struct {
	now atomic.Uint32
}

func NewManualClock(start uint32) *ManualClock {
	c := &ManualClock{}
	c.now.Store(start)
	return c
}

func (c *ManualClock) Millis() uint32 { return c.now.Load() }

// Set jumps the clock to ms.
func (c *ManualClock) Set(ms uint32) { c.now.Store(ms) }

// Advance moves the clock forward by d (truncated to whole milliseconds).
// The counter wraps like a hardware timer.
func (c *ManualClock) Advance(d time.Duration) {
	c.now.Add(uint32(d / time.Millisecond))
}
