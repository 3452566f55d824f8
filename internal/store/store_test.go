package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/stagehand/internal/query"
	"github.com/roach88/stagehand/internal/trace"
)

// createTestStore creates a new on-disk store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testEvents() []trace.Event {
	return []trace.Event{
		{Seq: 1, Tick: 1, Kind: trace.KindBlocks, Blocks: []string{"greet/0", "count/0"}},
		{Seq: 2, Tick: 1, Kind: trace.KindEnd, ExecutorID: "exec-1"},
		{Seq: 3, Tick: 2, Kind: trace.KindBlocks, Blocks: []string{"count/1"}},
		{Seq: 4, Tick: 3, Kind: trace.KindEnd, ExecutorID: "exec-2", Error: "step failed"},
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	var name string
	err = s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
		"trace_events",
	).Scan(&name)
	if err != nil {
		t.Errorf("trace_events table not found after idempotent opens: %v", err)
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := createTestStore(t)

	checks := map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
	}
	for pragma, expected := range checks {
		if err := s.verifyPragma(pragma, expected); err != nil {
			t.Errorf("pragma check failed: %v", err)
		}
	}
}

func TestOpen_SetsSchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version failed: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, expected %d", version, currentSchemaVersion)
	}
}

func TestWriteEvent_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	want := trace.Event{
		Seq:    7,
		Tick:   2,
		Kind:   trace.KindBlocks,
		Blocks: []string{"main/0", "main/1"},
	}
	if err := s.WriteEvent(ctx, want); err != nil {
		t.Fatalf("WriteEvent() failed: %v", err)
	}

	events, err := s.ReadEvents(ctx, query.Filter{})
	if err != nil {
		t.Fatalf("ReadEvents() failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, expected 1", len(events))
	}
	got := events[0]
	if got.Seq != want.Seq || got.Tick != want.Tick || got.Kind != want.Kind {
		t.Errorf("event header mismatch: got %+v, want %+v", got, want)
	}
	if len(got.Blocks) != 2 || got.Blocks[0] != "main/0" || got.Blocks[1] != "main/1" {
		t.Errorf("blocks mismatch: got %v", got.Blocks)
	}
}

func TestWriteEvent_DuplicateSeqIgnored(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ev := trace.Event{Seq: 1, Tick: 1, Kind: trace.KindEnd, ExecutorID: "exec-1"}
	if err := s.WriteEvent(ctx, ev); err != nil {
		t.Fatalf("first WriteEvent() failed: %v", err)
	}

	// Same seq with different payload is silently dropped
	dup := trace.Event{Seq: 1, Tick: 9, Kind: trace.KindEnd, ExecutorID: "other"}
	if err := s.WriteEvent(ctx, dup); err != nil {
		t.Fatalf("duplicate WriteEvent() failed: %v", err)
	}

	events, err := s.ReadEvents(ctx, query.Filter{})
	if err != nil {
		t.Fatalf("ReadEvents() failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, expected 1", len(events))
	}
	if events[0].ExecutorID != "exec-1" {
		t.Errorf("duplicate overwrote original: got %q", events[0].ExecutorID)
	}
}

func TestWriteEvents_Batch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.WriteEvents(ctx, testEvents()); err != nil {
		t.Fatalf("WriteEvents() failed: %v", err)
	}

	events, err := s.ReadEvents(ctx, query.Filter{})
	if err != nil {
		t.Fatalf("ReadEvents() failed: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, expected 4", len(events))
	}
	for i, ev := range events {
		if ev.Seq != int64(i+1) {
			t.Errorf("event %d: seq = %d, expected %d", i, ev.Seq, i+1)
		}
	}
}

func TestWriteEvents_Empty(t *testing.T) {
	s := createTestStore(t)

	if err := s.WriteEvents(context.Background(), nil); err != nil {
		t.Errorf("WriteEvents(nil) failed: %v", err)
	}
}

func TestReadEvents_FilterByKind(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.WriteEvents(ctx, testEvents()); err != nil {
		t.Fatalf("WriteEvents() failed: %v", err)
	}

	ends, err := s.ReadEvents(ctx, query.Filter{Kind: query.KindEnd})
	if err != nil {
		t.Fatalf("ReadEvents() failed: %v", err)
	}
	if len(ends) != 2 {
		t.Fatalf("got %d end events, expected 2", len(ends))
	}
	if ends[0].ExecutorID != "exec-1" || ends[1].ExecutorID != "exec-2" {
		t.Errorf("unexpected executors: %q, %q", ends[0].ExecutorID, ends[1].ExecutorID)
	}
	if ends[1].Error != "step failed" {
		t.Errorf("error not preserved: got %q", ends[1].Error)
	}
}

func TestReadEvents_FilterByExecutorAndTickRange(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.WriteEvents(ctx, testEvents()); err != nil {
		t.Fatalf("WriteEvents() failed: %v", err)
	}

	events, err := s.ReadEvents(ctx, query.Filter{ExecutorID: "exec-2", FromTick: 2, ToTick: 3})
	if err != nil {
		t.Fatalf("ReadEvents() failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, expected 1", len(events))
	}
	if events[0].Seq != 4 {
		t.Errorf("seq = %d, expected 4", events[0].Seq)
	}
}

func TestReadEvents_InvalidFilter(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadEvents(context.Background(), query.Filter{Kind: "bogus"})
	if err == nil {
		t.Error("expected error for invalid filter, got nil")
	}
}

func TestReadEvents_EmptyResultIsNotNil(t *testing.T) {
	s := createTestStore(t)

	events, err := s.ReadEvents(context.Background(), query.Filter{})
	if err != nil {
		t.Fatalf("ReadEvents() failed: %v", err)
	}
	if events == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(events) != 0 {
		t.Errorf("got %d events, expected 0", len(events))
	}
}

func TestReadSnapshot_HashStable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.WriteEvents(ctx, testEvents()); err != nil {
		t.Fatalf("WriteEvents() failed: %v", err)
	}

	snap1, err := s.ReadSnapshot(ctx, "run", query.Filter{})
	if err != nil {
		t.Fatalf("first ReadSnapshot() failed: %v", err)
	}
	snap2, err := s.ReadSnapshot(ctx, "run", query.Filter{})
	if err != nil {
		t.Fatalf("second ReadSnapshot() failed: %v", err)
	}

	h1, err := trace.SnapshotHash(snap1)
	if err != nil {
		t.Fatalf("first SnapshotHash() failed: %v", err)
	}
	h2, err := trace.SnapshotHash(snap2)
	if err != nil {
		t.Fatalf("second SnapshotHash() failed: %v", err)
	}
	if h1 != h2 {
		t.Errorf("snapshot hash not stable: %s != %s", h1, h2)
	}
}
