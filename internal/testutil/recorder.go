package testutil

// EndRecorder captures executor-ended notifications for assertions.
//
// Register Record with Scheduler.OnExecutorEnded, then inspect Ended and
// Errs after ticking.
type EndRecorder struct {
	// Ended lists executor IDs in notification order, duplicates included
	// (so exactly-once delivery is checkable).
	Ended []string

	// Errs maps executor ID to its terminal error (nil for clean ends).
	Errs map[string]error
}

// NewEndRecorder creates an empty recorder.
func NewEndRecorder() *EndRecorder {
	return &EndRecorder{Errs: make(map[string]error)}
}

// Record is the EndFunc to register with the scheduler.
func (r *EndRecorder) Record(executorID string, err error) {
	r.Ended = append(r.Ended, executorID)
	r.Errs[executorID] = err
}

// Count returns how many times executorID was reported ended.
func (r *EndRecorder) Count(executorID string) int {
	n := 0
	for _, id := range r.Ended {
		if id == executorID {
			n++
		}
	}
	return n
}
