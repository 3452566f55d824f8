package trace

import (
	"github.com/roach88/stagehand/internal/sched"
)

// Recorder subscribes to a scheduler and captures its watch and
// executor-ended notifications as trace events.
//
// Must be used from the host's frame goroutine, like the scheduler.
// Call Detach to stop recording.
type Recorder struct {
	sched      *sched.Scheduler
	seq        *Seq
	events     []Event
	watchToken int
	endToken   int
}

// NewRecorder attaches a recorder to the scheduler.
func NewRecorder(s *sched.Scheduler) *Recorder {
	r := &Recorder{
		sched: s,
		seq:   NewSeq(),
	}
	r.watchToken = s.OnBlockExecuted(r.recordBlocks)
	r.endToken = s.OnExecutorEnded(r.recordEnd)
	return r
}

func (r *Recorder) recordBlocks(blocks []sched.BlockID) {
	ids := make([]string, len(blocks))
	for i, b := range blocks {
		ids[i] = string(b)
	}
	r.events = append(r.events, Event{
		Seq:    r.seq.Next(),
		Tick:   r.sched.Ticks(),
		Kind:   KindBlocks,
		Blocks: ids,
	})
}

func (r *Recorder) recordEnd(executorID string, err error) {
	e := Event{
		Seq:        r.seq.Next(),
		Tick:       r.sched.Ticks(),
		Kind:       KindEnd,
		ExecutorID: executorID,
	}
	if err != nil {
		e.Error = err.Error()
	}
	r.events = append(r.events, e)
}

// Events returns the recorded events in sequence order.
func (r *Recorder) Events() []Event {
	return r.events
}

// Snapshot captures the recorded events under a name for golden
// comparison or hashing.
func (r *Recorder) Snapshot(name string) *Snapshot {
	events := make([]Event, len(r.events))
	copy(events, r.events)
	return &Snapshot{Name: name, Events: events}
}

// Detach unsubscribes the recorder from the scheduler.
// Recorded events remain available.
func (r *Recorder) Detach() {
	r.sched.OffBlockExecuted(r.watchToken)
	r.sched.OffExecutorEnded(r.endToken)
}
