package sched

import "time"

// Continuation is the captured suspension of one asynchronous block
// operation (e.g. a "wait"). A step that cannot complete immediately
// returns a Continuation instead of blocking; the scheduler parks the
// owning executor until the continuation becomes ready.
//
// Readiness is either time-based (ReadyAt) or manual (Resolve), whichever
// comes first. A continuation with a zero ReadyAt resumes only via
// Resolve.
type Continuation struct {
	// ReadyAt is the earliest time the suspended operation may resume.
	// Zero means manual resolution only.
	ReadyAt time.Time

	owner    *Executor
	resolved bool
}

// Resolve marks the continuation ready regardless of ReadyAt.
// Must be called from the host's frame goroutine.
func (c *Continuation) Resolve() {
	c.resolved = true
}

// Ready reports whether the wait condition is satisfied at now.
func (c *Continuation) Ready(now time.Time) bool {
	if c.resolved {
		return true
	}
	return !c.ReadyAt.IsZero() && !now.Before(c.ReadyAt)
}

// Owner returns the executor this continuation belongs to.
// Nil until the scheduler has registered the continuation.
func (c *Continuation) Owner() *Executor {
	return c.owner
}

// PendingContinuationQueue holds suspended continuations across ticks.
//
// Continuations are drained in FIFO order; per-executor FIFO follows from
// the global order since an executor can only suspend again after it has
// been resumed and stepped. Unresolved continuations remain queued
// indefinitely until ready or until their owning executor is cancelled.
type PendingContinuationQueue struct {
	entries []*Continuation
}

// NewPendingContinuationQueue creates an empty queue.
func NewPendingContinuationQueue() *PendingContinuationQueue {
	return &PendingContinuationQueue{}
}

// Enqueue adds a continuation to the back of the queue.
func (q *PendingContinuationQueue) Enqueue(c *Continuation) {
	q.entries = append(q.entries, c)
}

// DrainReady removes and returns all continuations whose wait condition
// is satisfied at now, in FIFO order. Each continuation is drained
// exactly once; unready entries keep their relative order.
func (q *PendingContinuationQueue) DrainReady(now time.Time) []*Continuation {
	var ready []*Continuation
	remaining := q.entries[:0]
	for _, c := range q.entries {
		if c.Ready(now) {
			ready = append(ready, c)
		} else {
			remaining = append(remaining, c)
		}
	}
	// Nil out vacated slots so drained continuations can be collected.
	for i := len(remaining); i < len(q.entries); i++ {
		q.entries[i] = nil
	}
	q.entries = remaining
	return ready
}

// DiscardFor removes all continuations owned by the given executor.
// Called on cancellation; discarded continuations are never resumed.
// Returns the number discarded.
func (q *PendingContinuationQueue) DiscardFor(executorID string) int {
	discarded := 0
	remaining := q.entries[:0]
	for _, c := range q.entries {
		if c.owner != nil && c.owner.id == executorID {
			discarded++
			continue
		}
		remaining = append(remaining, c)
	}
	for i := len(remaining); i < len(q.entries); i++ {
		q.entries[i] = nil
	}
	q.entries = remaining
	return discarded
}

// Len returns the number of queued continuations.
func (q *PendingContinuationQueue) Len() int {
	return len(q.entries)
}
