package sched

import "fmt"

// BlockID identifies one block of a script. The scheduler treats block
// IDs as opaque; they are assigned by the host's block interpreter.
type BlockID string

// State is the lifecycle state of an Executor.
type State int

const (
	// StateRunning means the executor is stepped on each tick.
	StateRunning State = iota
	// StatePaused means the executor is skipped until resumed.
	StatePaused
	// StateEnded is terminal: normal completion, error, or cancellation.
	StateEnded
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Scope is the execution context owned exclusively by one executor:
// local variables, the current instruction cursor, and the call-stack
// guard consulted during nested block evaluation.
type Scope struct {
	Vars   map[string]any
	Cursor int
	Guard  *CallStackGuard
}

// StepResult is what one step of an executor reports back to the
// scheduler. The step function itself is supplied by the host's block
// interpreter; the scheduler treats it as an opaque capability.
type StepResult struct {
	// Consumed lists the blocks executed by this step, in order.
	Consumed []BlockID

	// Continuation, when non-nil, suspends the executor until the
	// continuation becomes ready on a future tick.
	Continuation *Continuation

	// Ended reports that the script completed normally.
	Ended bool

	// Looped reports that this step belongs to a repeating construct
	// eligible for loop-phase re-entry within the same tick.
	Looped bool
}

// StepFunc advances one executor by exactly one step.
type StepFunc func(scope *Scope) (StepResult, error)

// Executor is one cooperatively-scheduled script thread.
//
// State transitions: Running -> Paused -> Running (externally driven
// toggle) and Running -> Ended (terminal, by completion, error, or
// cancellation). There is no transition out of Ended. IsLoop is fixed
// at creation.
type Executor struct {
	id      string
	state   State
	isLoop  bool
	scope   *Scope
	step    StepFunc
	err     error // terminal error, nil on clean end
	waiting bool  // parked on a pending continuation
	ended   bool  // end notification already fired
}

// ID returns the executor's identifier, unique for its lifetime.
func (ex *Executor) ID() string { return ex.id }

// State returns the current lifecycle state.
func (ex *Executor) State() State { return ex.state }

// IsLoop reports whether this executor represents a repeating construct.
func (ex *Executor) IsLoop() bool { return ex.isLoop }

// Scope returns the executor's owned execution context.
func (ex *Executor) Scope() *Scope { return ex.scope }

// Err returns the terminal error, or nil if the executor has not ended
// or ended cleanly.
func (ex *Executor) Err() error { return ex.err }

// Waiting reports whether the executor is parked on a continuation.
func (ex *Executor) Waiting() bool { return ex.waiting }

// pause moves Running -> Paused. No-op in any other state.
func (ex *Executor) pause() bool {
	if ex.state != StateRunning {
		return false
	}
	ex.state = StatePaused
	return true
}

// resume moves Paused -> Running. No-op in any other state.
func (ex *Executor) resume() bool {
	if ex.state != StatePaused {
		return false
	}
	ex.state = StateRunning
	return true
}

// end moves the executor to the terminal Ended state, recording err.
// Idempotent: once ended the state and error are fixed.
func (ex *Executor) end(err error) {
	if ex.state == StateEnded {
		return
	}
	ex.state = StateEnded
	ex.err = err
	ex.waiting = false
}

// runnable reports whether the executor should be stepped this tick.
func (ex *Executor) runnable() bool {
	return ex.state == StateRunning && !ex.waiting
}
