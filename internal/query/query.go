// Package query models read filters for recorded traces and compiles
// them to parameterized SQL for the store's read path. Keeping the
// filter model separate from SQL text means callers (CLI flags, tests)
// never concatenate query strings themselves.
package query

import "fmt"

// Valid event kinds, mirroring trace.Kind values.
const (
	KindBlocks = "blocks"
	KindEnd    = "end"
)

// Filter selects a subset of recorded trace events.
// Zero values mean "no constraint".
type Filter struct {
	// ExecutorID restricts end events to one executor.
	ExecutorID string

	// Kind restricts events to "blocks" or "end".
	Kind string

	// FromTick and ToTick bound the tick range, inclusive.
	// Zero means unbounded on that side.
	FromTick int64
	ToTick   int64
}

// Validate checks the filter for invalid values.
func (f Filter) Validate() error {
	switch f.Kind {
	case "", KindBlocks, KindEnd:
	default:
		return fmt.Errorf("invalid kind %q: must be %q or %q", f.Kind, KindBlocks, KindEnd)
	}
	if f.FromTick < 0 {
		return fmt.Errorf("invalid from tick %d: must not be negative", f.FromTick)
	}
	if f.ToTick < 0 {
		return fmt.Errorf("invalid to tick %d: must not be negative", f.ToTick)
	}
	if f.FromTick > 0 && f.ToTick > 0 && f.FromTick > f.ToTick {
		return fmt.Errorf("invalid tick range: from %d > to %d", f.FromTick, f.ToTick)
	}
	return nil
}

// Compile translates the filter to a parameterized SELECT over the
// trace_events table. Results are ordered by seq for a deterministic
// timeline. The filter must have been validated.
func Compile(f Filter) (string, []any) {
	stmt := `SELECT seq, tick, kind, executor_id, blocks, error FROM trace_events`
	var (
		conds []string
		args  []any
	)

	if f.ExecutorID != "" {
		conds = append(conds, "executor_id = ?")
		args = append(args, f.ExecutorID)
	}
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.FromTick > 0 {
		conds = append(conds, "tick >= ?")
		args = append(args, f.FromTick)
	}
	if f.ToTick > 0 {
		conds = append(conds, "tick <= ?")
		args = append(args, f.ToTick)
	}

	for i, c := range conds {
		if i == 0 {
			stmt += " WHERE " + c
		} else {
			stmt += " AND " + c
		}
	}
	stmt += " ORDER BY seq ASC"
	return stmt, args
}
