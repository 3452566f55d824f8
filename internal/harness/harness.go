// Package harness runs scenario files against a real scheduler.
//
// Each scenario compiles inline CUE programs, starts one executor per
// program, and advances a fixed number of frames under a deterministic
// clock and executor ID generator. Assertions then check the recorded
// trace, say output, and final scheduler state. Traces can also be
// compared against golden files for exact regression coverage.
package harness

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/stagehand/internal/compiler"
	"github.com/roach88/stagehand/internal/sched"
	"github.com/roach88/stagehand/internal/script"
	"github.com/roach88/stagehand/internal/testutil"
	"github.com/roach88/stagehand/internal/trace"
)

// harnessEpoch anchors the deterministic clock so recorded waits and
// frame budgets are identical across runs.
var harnessEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Say is one recorded say emission.
type Say struct {
	Program string
	Text    string
}

// Result holds everything a scenario run produced.
type Result struct {
	// Passed is true when every assertion held.
	Passed bool

	// Errors lists assertion failures.
	Errors []string

	// Snapshot is the recorded trace, named after the scenario.
	Snapshot *trace.Snapshot

	// Says lists say emissions in order.
	Says []Say

	// EndedErrs maps program name to its end error (nil for clean ends).
	// Programs that never ended are absent.
	EndedErrs map[string]error

	// ActiveCount is the number of executors still active after the run.
	ActiveCount int

	// vars holds the final scope variables of still-active executors,
	// keyed by program name.
	vars map[string]map[string]any
}

// AddError records an assertion failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Passed = false
	r.Errors = append(r.Errors, err)
}

// Run executes a scenario and returns the result.
//
// Each scenario runs a fresh scheduler with a deterministic clock and
// fixed executor IDs ("exec-1", "exec-2", ... in program order), so
// traces are reproducible byte for byte.
func Run(scenario *Scenario) (*Result, error) {
	programs, err := compilePrograms(scenario.Programs)
	if err != nil {
		return nil, fmt.Errorf("failed to compile programs: %w", err)
	}

	cfg, err := schedulerConfig(scenario.Config)
	if err != nil {
		return nil, fmt.Errorf("invalid scenario config: %w", err)
	}

	clock := testutil.NewFakeClock(harnessEpoch)
	if !cfg.TurboEnabled {
		// Advance the clock on every read so the wall-clock budget
		// terminates loop re-entry.
		clock.SetAutoStep(time.Millisecond)
	}

	ids := make([]string, len(programs))
	for i := range programs {
		ids[i] = fmt.Sprintf("exec-%d", i+1)
	}

	result := &Result{
		Passed:    true,
		EndedErrs: make(map[string]error),
		vars:      make(map[string]map[string]any),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	interp := script.NewInterpreter(
		script.WithClock(clock),
		script.WithLogger(logger),
		script.WithSayFunc(func(program, text string) {
			result.Says = append(result.Says, Say{Program: program, Text: text})
		}),
	)
	for _, p := range programs {
		if err := interp.Register(*p); err != nil {
			return nil, fmt.Errorf("failed to register program %q: %w", p.Name, err)
		}
	}

	scheduler := sched.New(
		sched.WithConfig(cfg),
		sched.WithClock(clock),
		sched.WithIDGenerator(sched.NewFixedIDGenerator(ids...)),
		sched.WithLogger(logger),
	)
	recorder := trace.NewRecorder(scheduler)

	programByID := make(map[string]string, len(programs))
	scheduler.OnExecutorEnded(func(executorID string, endErr error) {
		result.EndedErrs[programByID[executorID]] = endErr
	})

	for _, p := range programs {
		step, err := interp.StepFunc(p.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve program %q: %w", p.Name, err)
		}
		var startOpts []sched.StartOption
		if p.Loop {
			startOpts = append(startOpts, sched.AsLoop())
		}
		id := scheduler.Start(step, startOpts...)
		programByID[id] = p.Name
	}

	tickTime := cfg.TickTime
	for i := 0; i < scenario.Ticks; i++ {
		scheduler.Tick()
		// Frames are spaced one frame interval apart, which is what
		// resolves recorded waits.
		clock.Advance(tickTime)
	}

	result.Snapshot = recorder.Snapshot(scenario.Name)
	result.ActiveCount = scheduler.ActiveCount()
	for id, name := range programByID {
		if ex, ok := scheduler.Executor(id); ok {
			result.vars[name] = ex.Scope().Vars
		}
	}

	for _, assertion := range scenario.Assertions {
		if err := evaluateAssertion(result, assertion); err != nil {
			result.AddError(err.Error())
		}
	}

	return result, nil
}

// compilePrograms compiles the scenario's inline CUE source.
func compilePrograms(source string) ([]*script.Program, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(source)
	if err := v.Err(); err != nil {
		return nil, err
	}
	return compiler.CompilePrograms(v)
}

// schedulerConfig translates the scenario config to a scheduler config.
func schedulerConfig(sc ScenarioConfig) (sched.Config, error) {
	cfg := sched.DefaultConfig()
	if sc.TickTimeMS > 0 {
		cfg.TickTime = time.Duration(sc.TickTimeMS) * time.Millisecond
	}
	cfg.TurboEnabled = sc.Turbo
	cfg.MaxIterationsPerFrame = sc.MaxIterations
	cfg.MaxStackDepth = sc.MaxStackDepth
	if err := cfg.Validate(); err != nil {
		return sched.Config{}, err
	}
	return cfg, nil
}

// said reports whether the program emitted the text.
func (r *Result) said(program, text string) bool {
	for _, s := range r.Says {
		if s.Program == program && s.Text == text {
			return true
		}
	}
	return false
}

// executedBlocks flattens the trace's blocks events in order.
func (r *Result) executedBlocks() []string {
	var blocks []string
	for _, ev := range r.Snapshot.Events {
		if ev.Kind == trace.KindBlocks {
			blocks = append(blocks, ev.Blocks...)
		}
	}
	return blocks
}

// sayTranscript renders the say log for failure messages.
func (r *Result) sayTranscript() string {
	if len(r.Says) == 0 {
		return "(nothing said)"
	}
	parts := make([]string, len(r.Says))
	for i, s := range r.Says {
		parts[i] = fmt.Sprintf("[%s] %s", s.Program, s.Text)
	}
	return strings.Join(parts, "; ")
}
