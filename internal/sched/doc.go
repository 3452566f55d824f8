// Package sched implements the stagehand cooperative frame scheduler.
//
// The scheduler advances many independently-running script threads
// ("executors") once per animation frame. The host calls Tick() from its
// frame callback; the scheduler steps every runnable executor, re-enters
// looping executors under a wall-clock or iteration budget, batches
// "blocks executed" watch events, and parks asynchronous continuations
// for resumption on a later tick.
//
// ARCHITECTURE:
//
// Single-Goroutine Cooperative Loop:
// All scheduler state (active list, loop queue, continuation queue) is
// mutated exclusively inside Tick() and the boundary operations (Start,
// Cancel, Pause, Resume, Configure). The host must confine all of these
// to one goroutine - its frame loop - and must never re-enter Tick().
// There is no internal locking and no internal parallelism.
//
// Tick Processing Flow:
// 1. Ready continuations are drained; their owners become runnable again
// 2. Single-step phase: each runnable executor steps exactly once
// 3. Loop phase: looping executors are re-entered repeatedly while the
//    configured budget (wall-clock or iteration cap) allows
// 4. One watch event is published with every block executed this tick,
//    only when at least one subscriber is registered
// 5. Continuations returned by steps are enqueued for later ticks
//
// CRITICAL PATTERNS:
//
// Fault Isolation:
// An error or panic raised while stepping one executor ends only that
// executor. The tick continues with the remaining executors; there is no
// global crash path.
//
// Deterministic Ordering:
// Within one tick, single-step executors are visited in insertion order,
// then loop executors are re-entered in insertion order. Executors started
// mid-tick are not visited until the next tick.
//
// Bounded Ticks:
// Tick() always returns. Loop re-entry is cut off by the wall-clock budget
// (non-turbo), the per-frame iteration cap (turbo), and in all cases by
// HardIterationCeiling.
package sched
