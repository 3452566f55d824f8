package sched

import "time"

// DefaultTickTime is the default wall-clock budget for loop-phase
// execution, derived from a 60fps target frame rate.
const DefaultTickTime = time.Second / 60

// HardIterationCeiling bounds loop-phase steps per tick in every mode,
// including turbo with an unlimited iteration cap. A forever-looping
// executor can never hold Tick() past this many steps in one frame.
const HardIterationCeiling = 500_000

// Config is the frame budget and safety configuration for a Scheduler.
//
// Config is an explicit value passed to New and updated via Configure;
// there is no ambient global state. Updates take effect on the next tick.
type Config struct {
	// TickTime is the wall-clock budget per frame for loop-phase
	// execution. Ignored when TurboEnabled is true.
	TickTime time.Duration

	// TurboEnabled bypasses the wall-clock budget in favor of
	// MaxIterationsPerFrame.
	TurboEnabled bool

	// MaxIterationsPerFrame caps loop-phase steps per tick in turbo mode.
	// Zero means unlimited (still bounded by HardIterationCeiling).
	MaxIterationsPerFrame int

	// MaxStackDepth is the per-executor call depth limit for nested block
	// evaluation. Zero means unlimited; enforcement is off by default.
	MaxStackDepth int
}

// DefaultConfig returns the default frame budget: 60fps wall-clock
// budgeting, turbo off, no iteration cap, no stack depth limit.
func DefaultConfig() Config {
	return Config{
		TickTime: DefaultTickTime,
	}
}

// Validate checks the config for invalid values.
// Returns a ConfigurationError naming the offending field.
func (c Config) Validate() error {
	if c.TickTime < 0 {
		return &ConfigurationError{Field: "TickTime", Message: "must not be negative"}
	}
	if !c.TurboEnabled && c.TickTime == 0 {
		return &ConfigurationError{Field: "TickTime", Message: "required when turbo is disabled"}
	}
	if c.MaxIterationsPerFrame < 0 {
		return &ConfigurationError{Field: "MaxIterationsPerFrame", Message: "must not be negative"}
	}
	if c.MaxStackDepth < 0 {
		return &ConfigurationError{Field: "MaxStackDepth", Message: "must not be negative"}
	}
	return nil
}
