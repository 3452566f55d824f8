package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/stagehand/internal/query"
	"github.com/roach88/stagehand/internal/trace"
)

// ReadEvents returns the trace events matching the filter.
// Results are ordered by seq for a deterministic timeline.
//
// Returns an empty slice (not nil) if no events match.
func (s *Store) ReadEvents(ctx context.Context, f query.Filter) ([]trace.Event, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	stmt, args := query.Compile(f)
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []trace.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	// Return empty slice instead of nil
	if events == nil {
		events = []trace.Event{}
	}

	return events, nil
}

// ReadSnapshot reads all events matching the filter into a named
// snapshot, ready for canonical serialization or hashing.
func (s *Store) ReadSnapshot(ctx context.Context, name string, f query.Filter) (*trace.Snapshot, error) {
	events, err := s.ReadEvents(ctx, f)
	if err != nil {
		return nil, err
	}
	return &trace.Snapshot{Name: name, Events: events}, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

// scanEvent scans a trace_events row into a trace.Event.
func scanEvent(row scanner) (trace.Event, error) {
	var (
		ev         trace.Event
		kind       string
		blocksJSON string
	)
	if err := row.Scan(&ev.Seq, &ev.Tick, &kind, &ev.ExecutorID, &blocksJSON, &ev.Error); err != nil {
		return trace.Event{}, fmt.Errorf("scan event: %w", err)
	}
	ev.Kind = trace.Kind(kind)

	var blocks []string
	if err := json.Unmarshal([]byte(blocksJSON), &blocks); err != nil {
		return trace.Event{}, fmt.Errorf("scan event: unmarshal blocks: %w", err)
	}
	if len(blocks) > 0 {
		ev.Blocks = blocks
	}

	return ev, nil
}
