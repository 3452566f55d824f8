package sched

// CallStackGuard tracks nested block evaluation depth for one executor.
//
// Before a step recurses into nested evaluation it calls Enter; on return
// it calls Leave. Enter fails once depth exceeds the configured limit.
// The guard is scoped per executor - recursion in one script thread never
// affects another's counter.
//
// The guard always reflects true depth. It is never silently reset: a
// "report zero" shortcut would mask real overflow, so the counter only
// moves through Enter and Leave.
//
// A limit of zero disables enforcement (depth is still tracked).
type CallStackGuard struct {
	limit int // 0 = unlimited
	depth int
}

// NewCallStackGuard creates a guard with the given depth limit.
// A limit of zero means unlimited.
func NewCallStackGuard(limit int) *CallStackGuard {
	return &CallStackGuard{limit: limit}
}

// Enter increments the depth counter before nested evaluation.
// Returns a RuntimeError with ErrCodeStackDepthExceeded once depth
// exceeds a finite limit. On failure the increment is rolled back so
// the counter stays accurate.
func (g *CallStackGuard) Enter() error {
	g.depth++
	if g.limit > 0 && g.depth > g.limit {
		g.depth--
		return NewStackDepthError(g.depth+1, g.limit)
	}
	return nil
}

// Leave decrements the depth counter on return from nested evaluation.
// Leave without a matching Enter is a caller bug; the counter is clamped
// at zero rather than going negative.
func (g *CallStackGuard) Leave() {
	if g.depth > 0 {
		g.depth--
	}
}

// Depth returns the current nesting depth.
func (g *CallStackGuard) Depth() int {
	return g.depth
}

// Limit returns the configured depth limit (0 = unlimited).
func (g *CallStackGuard) Limit() int {
	return g.limit
}

// SetLimit updates the depth limit. Used when Configure changes
// MaxStackDepth; the current depth is preserved.
func (g *CallStackGuard) SetLimit(limit int) {
	g.limit = limit
}
