// Package testutil provides deterministic helpers for scheduler tests:
// a fake wall clock and end-notification recorders. Fixed executor IDs
// live in internal/sched (FixedIDGenerator) next to the production
// generator they mirror.
package testutil

import "time"

// FakeClock is a deterministic sched.Clock for tests.
//
// Time only moves when the test says so: either explicitly via Advance,
// or automatically by a fixed step on every Now call (SetAutoStep). The
// auto-step mode models wall time passing while the scheduler measures
// its loop-phase budget.
type FakeClock struct {
	now  time.Time
	step time.Duration
}

// NewFakeClock creates a clock frozen at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake time, then advances it by the configured
// auto-step (zero by default).
func (c *FakeClock) Now() time.Time {
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// SetAutoStep makes every Now call advance the clock by d afterwards.
// Zero disables auto-stepping.
func (c *FakeClock) SetAutoStep(d time.Duration) {
	c.step = d
}

// Set jumps the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.now = t
}
