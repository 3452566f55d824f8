package store

import (
	"context"
	"fmt"

	"github.com/roach88/stagehand/internal/trace"
)

// WriteEvent inserts a single trace event.
// Uses ON CONFLICT(seq) DO NOTHING for idempotency - re-writing a
// recorded event is silently ignored.
//
// The event's block list is serialized to canonical JSON so stored
// traces hash and compare deterministically.
func (s *Store) WriteEvent(ctx context.Context, ev trace.Event) error {
	blocksJSON, err := marshalBlocks(ev.Blocks)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trace_events (seq, tick, kind, executor_id, blocks, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		ev.Seq,
		ev.Tick,
		string(ev.Kind),
		ev.ExecutorID,
		blocksJSON,
		ev.Error,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}

// WriteEvents inserts a batch of trace events in one transaction.
// Either all events are written or none are.
func (s *Store) WriteEvents(ctx context.Context, events []trace.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write events: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trace_events (seq, tick, kind, executor_id, blocks, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write events: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		blocksJSON, err := marshalBlocks(ev.Blocks)
		if err != nil {
			return fmt.Errorf("write events: seq %d: %w", ev.Seq, err)
		}
		if _, err := stmt.ExecContext(ctx,
			ev.Seq, ev.Tick, string(ev.Kind), ev.ExecutorID, blocksJSON, ev.Error,
		); err != nil {
			return fmt.Errorf("write events: seq %d: %w", ev.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write events: commit: %w", err)
	}

	return nil
}

// marshalBlocks serializes a block ID list to canonical JSON.
// A nil or empty list serializes as "[]" to keep the column NOT NULL.
func marshalBlocks(blocks []string) (string, error) {
	vals := make([]any, len(blocks))
	for i, b := range blocks {
		vals[i] = b
	}
	data, err := trace.MarshalCanonical(vals)
	if err != nil {
		return "", fmt.Errorf("marshal blocks: %w", err)
	}
	return string(data), nil
}
