package trace

import "sync/atomic"

// Seq is a monotonic sequence counter for trace events.
//
// Events are stamped with a strictly increasing number so a recorded
// trace has a deterministic total order; wall-clock timestamps are
// never used for ordering.
//
// Seq is safe for concurrent use, though the recorder's single-
// goroutine confinement means only one goroutine typically calls Next.
type Seq struct {
	n atomic.Int64
}

// NewSeq creates a counter starting at 0; the first Next returns 1.
func NewSeq() *Seq {
	return &Seq{}
}

// NewSeqAt creates a counter resuming from start.
// Used when appending to a previously recorded trace.
func NewSeqAt(start int64) *Seq {
	s := &Seq{}
	s.n.Store(start)
	return s
}

// Next returns the next sequence number.
func (s *Seq) Next() int64 {
	return s.n.Add(1)
}

// Current returns the current sequence number without incrementing.
func (s *Seq) Current() int64 {
	return s.n.Load()
}
