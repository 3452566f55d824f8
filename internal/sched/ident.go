package sched

import "github.com/google/uuid"

// IDGenerator generates unique executor identifiers.
// Implemented by UUIDv7Generator (production) and FixedIDGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 executor IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, making IDs
// sortable by creation time. This is helpful when reading recorded traces.
//
// UUIDv7Generator is stateless.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedIDGenerator returns predetermined executor IDs for testing.
//
// This enables deterministic test execution and golden trace comparison.
// Tests provide a known sequence of IDs and verify exact trace output.
type FixedIDGenerator struct {
	ids []string
	idx int
}

// NewFixedIDGenerator creates a generator that returns IDs in order.
//
// Example:
//
//	gen := NewFixedIDGenerator("e1", "e2", "e3")
//	gen.Generate() // "e1"
//	gen.Generate() // "e2"
//	gen.Generate() // "e3"
//	gen.Generate() // panic: all IDs exhausted
func NewFixedIDGenerator(ids ...string) *FixedIDGenerator {
	return &FixedIDGenerator{ids: ids}
}

// Generate returns the next predetermined ID.
//
// Panics if all IDs have been consumed. This is a fail-fast approach to
// catch test misconfiguration (test started more executors than expected).
func (g *FixedIDGenerator) Generate() string {
	if g.idx >= len(g.ids) {
		panic("FixedIDGenerator: all IDs exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
