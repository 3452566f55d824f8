package sched

import "time"

// Clock supplies the wall-clock readings used to measure the loop-phase
// budget. The scheduler never reads time.Now directly; tests inject a
// deterministic implementation (see internal/testutil).
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
