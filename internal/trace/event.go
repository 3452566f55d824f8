// Package trace models recorded scheduler activity: per-tick block
// execution and executor endings. Events carry a monotonic sequence
// number so recorded traces have a total order independent of wall
// time, and serialize to canonical JSON for golden comparison and
// content hashing.
package trace

// Kind categorizes trace events.
type Kind string

const (
	// KindBlocks is one tick's watch event: the blocks executed during
	// that tick, in execution order.
	KindBlocks Kind = "blocks"

	// KindEnd records an executor ending (clean, error, or cancelled).
	KindEnd Kind = "end"
)

// Event is one recorded scheduler occurrence.
type Event struct {
	// Seq is the monotonic event sequence number.
	Seq int64 `json:"seq"`

	// Tick is the tick during which the event occurred.
	Tick int64 `json:"tick"`

	// Kind is "blocks" or "end".
	Kind Kind `json:"kind"`

	// ExecutorID identifies the ending executor for end events.
	// Empty for blocks events, which span the whole tick.
	ExecutorID string `json:"executor_id,omitempty"`

	// Blocks lists executed block IDs for blocks events.
	Blocks []string `json:"blocks,omitempty"`

	// Error carries the terminal error message for end events.
	// Empty for clean ends.
	Error string `json:"error,omitempty"`
}

// canonicalMap converts the event for canonical JSON serialization.
func (e Event) canonicalMap() map[string]any {
	m := map[string]any{
		"seq":  e.Seq,
		"tick": e.Tick,
		"kind": string(e.Kind),
	}
	if e.ExecutorID != "" {
		m["executor_id"] = e.ExecutorID
	}
	if len(e.Blocks) > 0 {
		blocks := make([]any, len(e.Blocks))
		for i, b := range e.Blocks {
			blocks[i] = b
		}
		m["blocks"] = blocks
	}
	if e.Error != "" {
		m["error"] = e.Error
	}
	return m
}

// Snapshot is a named, ordered capture of trace events, the unit of
// golden-file comparison and content hashing.
type Snapshot struct {
	Name   string  `json:"name"`
	Events []Event `json:"events"`
}

// CanonicalJSON serializes the snapshot deterministically.
func (s *Snapshot) CanonicalJSON() ([]byte, error) {
	events := make([]any, len(s.Events))
	for i, e := range s.Events {
		events[i] = e.canonicalMap()
	}
	return MarshalCanonical(map[string]any{
		"name":   s.Name,
		"events": events,
	})
}
