// internal/sched/clock.go

package sched

import (
	"sync/atomic"
	"time"
)

// Clock supplies monotonic nanoseconds to the scheduler. Wake times are
// computed only from Now, never from the wall clock.
type Clock interface {
	Now() int64
	Sleep(d time.Duration)
}

// monoClock reads Go's monotonic clock through an anchor taken at creation.
type monoClock struct {
	anchor time.Time
}

// NewMonotonicClock returns the clock used by default.
func NewMonotonicClock() Clock {
	return &monoClock{anchor: time.Now()}
}

func (c *monoClock) Now() int64 { return int64(time.Since(c.anchor)) }

func (c *monoClock) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// ManualClock is a Clock that only moves when told to. Sleep advances it
// instantly, so a loop driven by it runs without real delays.
type ManualClock struct {
	now    atomic.Int64
	sleeps atomic.Int64
}

func (c *ManualClock) Now() int64 { return c.now.Load() }

func (c *ManualClock) Sleep(d time.Duration) {
	c.sleeps.Add(1)
	if d > 0 {
		c.now.Add(int64(d))
	}
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) { c.now.Add(int64(d)) }

// Sleeps returns how many times Sleep was called.
func (c *ManualClock) Sleeps() int64 { return c.sleeps.Load() }
