package sched

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// EndFunc receives the executor-ended notification. err is nil for a
// clean completion or cancellation, and carries the RuntimeError when
// the executor ended in failure.
type EndFunc func(executorID string, err error)

// DrainedFunc fires when a removal empties the active set.
type DrainedFunc func()

type endSub struct {
	id int
	fn EndFunc
}

type drainedSub struct {
	id int
	fn DrainedFunc
}

// Scheduler orchestrates one frame's worth of execution across all
// executors. The host calls Tick() once per frame; Tick never blocks
// past its budget and always returns control even when work remains.
//
// All methods must be called from the host's frame goroutine. Tick is
// guarded against accidental re-entry (a nested call is a no-op).
type Scheduler struct {
	cfg    Config
	clock  Clock
	idGen  IDGenerator
	logger *slog.Logger

	bus     *WatchEventBus
	pending *PendingContinuationQueue

	active []*Executor // insertion order
	byID   map[string]*Executor

	endSubs     []endSub
	drainedSubs []drainedSub
	nextSubID   int

	tickStart time.Time
	ticks     int64
	inTick    bool
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithConfig sets the initial frame budget. Invalid configs panic at
// construction; use Configure for runtime updates with error handling.
func WithConfig(cfg Config) Option {
	return func(s *Scheduler) {
		if err := cfg.Validate(); err != nil {
			panic(fmt.Sprintf("sched: %v", err))
		}
		s.cfg = cfg
	}
}

// WithClock injects the wall clock used for budget measurement.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithIDGenerator injects the executor ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Scheduler) { s.idGen = g }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a Scheduler with the default config, system clock, and
// UUIDv7 executor IDs.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:       DefaultConfig(),
		clock:     SystemClock{},
		idGen:     UUIDv7Generator{},
		logger:    slog.Default(),
		bus:       NewWatchEventBus(),
		pending:   NewPendingContinuationQueue(),
		byID:      make(map[string]*Executor),
		nextSubID: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartOption configures one executor at start.
type StartOption func(*Executor)

// AsLoop marks the executor as a repeating construct eligible for
// loop-phase re-entry. Fixed for the executor's lifetime.
func AsLoop() StartOption {
	return func(ex *Executor) { ex.isLoop = true }
}

// WithVars seeds the executor's scope variables.
func WithVars(vars map[string]any) StartOption {
	return func(ex *Executor) {
		for k, v := range vars {
			ex.scope.Vars[k] = v
		}
	}
}

// Start creates an executor for the given step function and adds it to
// the active set. Executors started mid-tick are not visited until the
// next tick. Returns the new executor's ID.
func (s *Scheduler) Start(step StepFunc, opts ...StartOption) string {
	ex := &Executor{
		id:    s.idGen.Generate(),
		state: StateRunning,
		step:  step,
		scope: &Scope{
			Vars:  make(map[string]any),
			Guard: NewCallStackGuard(s.cfg.MaxStackDepth),
		},
	}
	for _, opt := range opts {
		opt(ex)
	}
	s.active = append(s.active, ex)
	s.byID[ex.id] = ex
	s.logger.Debug("executor started", "executor_id", ex.id, "loop", ex.isLoop)
	return ex.id
}

// Cancel removes an executor from the active set and discards its queued
// continuations. Safe at any time, including mid-loop-phase from a
// notification callback: the loop scan tolerates in-place removal without
// skipping or double-visiting neighbors. Fires the end notification.
// Returns false if the executor is unknown.
func (s *Scheduler) Cancel(id string) bool {
	ex, ok := s.byID[id]
	if !ok {
		return false
	}
	discarded := s.pending.DiscardFor(id)
	ex.end(nil)
	s.logger.Debug("executor cancelled", "executor_id", id, "continuations_discarded", discarded)
	s.remove(ex)
	return true
}

// Pause moves a running executor to Paused. Paused executors produce no
// steps until resumed. Returns false if the executor is unknown or not
// running.
func (s *Scheduler) Pause(id string) bool {
	ex, ok := s.byID[id]
	if !ok {
		return false
	}
	return ex.pause()
}

// Resume moves a paused executor back to Running.
// Returns false if the executor is unknown or not paused.
func (s *Scheduler) Resume(id string) bool {
	ex, ok := s.byID[id]
	if !ok {
		return false
	}
	return ex.resume()
}

// Configure replaces the frame budget. Invalid configs are rejected
// synchronously with a ConfigurationError and the scheduler state is
// unchanged. Takes effect on the next tick.
func (s *Scheduler) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg
	for _, ex := range s.active {
		ex.scope.Guard.SetLimit(cfg.MaxStackDepth)
	}
	s.logger.Debug("scheduler reconfigured",
		"tick_time", cfg.TickTime,
		"turbo", cfg.TurboEnabled,
		"max_iterations", cfg.MaxIterationsPerFrame,
		"max_stack_depth", cfg.MaxStackDepth,
	)
	return nil
}

// Config returns the current frame budget.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// OnBlockExecuted subscribes to the per-tick watch event.
// Returns a token for OffBlockExecuted.
func (s *Scheduler) OnBlockExecuted(fn WatchFunc) int {
	return s.bus.Subscribe(fn)
}

// OffBlockExecuted removes a watch subscription.
func (s *Scheduler) OffBlockExecuted(token int) {
	s.bus.Unsubscribe(token)
}

// OnExecutorEnded subscribes to executor-ended notifications.
// Each executor fires exactly once, regardless of which phase ended it.
// Returns a token for OffExecutorEnded.
func (s *Scheduler) OnExecutorEnded(fn EndFunc) int {
	id := s.nextSubID
	s.nextSubID++
	s.endSubs = append(s.endSubs, endSub{id: id, fn: fn})
	return id
}

// OffExecutorEnded removes an executor-ended subscription.
func (s *Scheduler) OffExecutorEnded(token int) {
	for i, sub := range s.endSubs {
		if sub.id == token {
			s.endSubs = append(s.endSubs[:i], s.endSubs[i+1:]...)
			return
		}
	}
}

// OnDrained subscribes to the active-set-drained notification.
func (s *Scheduler) OnDrained(fn DrainedFunc) int {
	id := s.nextSubID
	s.nextSubID++
	s.drainedSubs = append(s.drainedSubs, drainedSub{id: id, fn: fn})
	return id
}

// OffDrained removes a drained subscription.
func (s *Scheduler) OffDrained(token int) {
	for i, sub := range s.drainedSubs {
		if sub.id == token {
			s.drainedSubs = append(s.drainedSubs[:i], s.drainedSubs[i+1:]...)
			return
		}
	}
}

// ActiveCount returns the number of live executors (including paused and
// parked ones).
func (s *Scheduler) ActiveCount() int {
	return len(s.active)
}

// PendingCount returns the number of queued continuations.
func (s *Scheduler) PendingCount() int {
	return s.pending.Len()
}

// Ticks returns the number of completed Tick calls.
func (s *Scheduler) Ticks() int64 {
	return s.ticks
}

// Executor looks up a live executor by ID.
// Used for testing and introspection.
func (s *Scheduler) Executor(id string) (*Executor, bool) {
	ex, ok := s.byID[id]
	return ex, ok
}

// Tick advances every executor by one frame's worth of execution.
//
// Phase order: resume ready continuations, single-step every runnable
// executor once, re-enter looping executors under the budget, publish
// the watch event, reset the timing marker. A nested call (host
// re-entrancy bug) is a no-op.
func (s *Scheduler) Tick() {
	if s.inTick {
		s.logger.Warn("tick re-entered, ignoring nested call")
		return
	}
	s.inTick = true
	defer func() { s.inTick = false }()

	s.tickStart = s.clock.Now()
	s.ticks++

	// Resume executors whose continuations became ready.
	for _, c := range s.pending.DrainReady(s.tickStart) {
		if ex := c.owner; ex != nil && ex.state != StateEnded {
			ex.waiting = false
		}
	}

	// The block sequence is only built when somebody observes it.
	collect := s.bus.HasSubscribers()
	var executed []BlockID

	// Single-step phase. The snapshot fixes insertion order and keeps
	// executors started mid-tick out of this tick.
	snapshot := make([]*Executor, len(s.active))
	copy(snapshot, s.active)

	var loopQueue []*Executor
	for _, ex := range snapshot {
		if !ex.runnable() {
			continue
		}
		res, ok := s.stepOnce(ex)
		if collect {
			executed = append(executed, res.Consumed...)
		}
		if !ok {
			s.remove(ex)
			continue
		}
		if s.park(ex, res) {
			continue
		}
		if res.Looped {
			loopQueue = append(loopQueue, ex)
		}
	}

	// Loop phase. Each entry already consumed one step above, so the
	// per-tick execution count starts at the queue length; the iteration
	// cap therefore bounds total steps per loop executor per tick.
	execCount := len(loopQueue)
	for len(loopQueue) > 0 {
		scanStart := execCount
		n := 0
		for i := 0; i < len(loopQueue); i++ {
			ex := loopQueue[i]
			if ex.state == StateEnded {
				// Cancelled mid-phase; drop without disturbing neighbors.
				continue
			}
			if ex.state == StatePaused {
				loopQueue[n] = ex
				n++
				continue
			}
			res, ok := s.stepOnce(ex)
			execCount++
			if collect {
				executed = append(executed, res.Consumed...)
			}
			if !ok {
				s.remove(ex)
				continue
			}
			if s.park(ex, res) {
				continue
			}
			loopQueue[n] = ex
			n++
		}
		loopQueue = loopQueue[:n]

		// A scan that stepped nothing (every remaining entry paused)
		// cannot make progress this tick; re-entering would spin forever
		// under a turbo budget.
		if execCount == scanStart {
			break
		}
		if !s.reenterLoopPhase(execCount) {
			break
		}
	}

	if collect {
		s.bus.Notify(executed)
	}

	// Reset the timing marker for the next frame.
	s.tickStart = time.Time{}
}

// reenterLoopPhase decides whether the loop queue is scanned again this
// tick. HardIterationCeiling bounds every mode so Tick always returns.
func (s *Scheduler) reenterLoopPhase(execCount int) bool {
	if execCount >= HardIterationCeiling {
		s.logger.Warn("loop phase hit hard iteration ceiling",
			"steps", execCount,
			"ceiling", HardIterationCeiling,
		)
		return false
	}
	if s.cfg.TurboEnabled {
		if s.cfg.MaxIterationsPerFrame <= 0 {
			return true
		}
		return execCount < s.cfg.MaxIterationsPerFrame
	}
	return s.clock.Now().Sub(s.tickStart) < s.cfg.TickTime
}

// stepOnce executes exactly one step of ex, isolating failures to that
// executor. Returns the step result and whether the executor is still
// live. On a false return the executor has ended (cleanly or in error)
// and must be removed by the caller.
func (s *Scheduler) stepOnce(ex *Executor) (StepResult, bool) {
	res, err := s.safeStep(ex)
	if err != nil {
		err = normalizeStepError(ex.id, err)
		s.logger.Error("executor step failed",
			"executor_id", ex.id,
			"error", err,
		)
		ex.end(err)
		return res, false
	}
	if res.Ended {
		ex.end(nil)
		return res, false
	}
	return res, true
}

// safeStep invokes the host-supplied step function, converting panics
// into step failures so one executor cannot abort the tick.
func (s *Scheduler) safeStep(ex *Executor) (res StepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewStepFailureError(ex.id, fmt.Errorf("step panic: %v", r))
		}
	}()
	return ex.step(ex.scope)
}

// park registers a continuation returned by a step. Already-resolved
// continuations leave the executor in the active set for the next tick.
// Returns true when the executor was parked.
func (s *Scheduler) park(ex *Executor, res StepResult) bool {
	c := res.Continuation
	if c == nil {
		return false
	}
	c.owner = ex
	if c.Ready(s.clock.Now()) {
		return false
	}
	ex.waiting = true
	s.pending.Enqueue(c)
	return true
}

// remove deletes an ended executor from the active set and fires the end
// notification exactly once. When the removal empties the active set the
// drained notification fires.
func (s *Scheduler) remove(ex *Executor) {
	for i, e := range s.active {
		if e == ex {
			s.active = append(s.active[:i], s.active[i+1:]...)
			break
		}
	}
	delete(s.byID, ex.id)

	if !ex.ended {
		ex.ended = true
		s.logger.Debug("executor ended", "executor_id", ex.id, "error", ex.err)
		for _, sub := range s.endSubs {
			sub.fn(ex.id, ex.err)
		}
	}

	if len(s.active) == 0 {
		for _, sub := range s.drainedSubs {
			sub.fn()
		}
	}
}

// normalizeStepError ensures every step failure surfaces as a
// RuntimeError attributed to the failing executor. Guard trips and other
// RuntimeErrors raised by the interpreter pass through with the executor
// ID filled in.
func normalizeStepError(executorID string, err error) error {
	var re *RuntimeError
	if errors.As(err, &re) {
		if re.ExecutorID == "" {
			re.ExecutorID = executorID
		}
		return re
	}
	return NewStepFailureError(executorID, err)
}
