package script_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stagehand/internal/sched"
	"github.com/roach88/stagehand/internal/script"
	"github.com/roach88/stagehand/internal/testutil"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newInterpreter(t *testing.T) (*script.Interpreter, *testutil.FakeClock, *[]string) {
	t.Helper()
	clock := testutil.NewFakeClock(epoch)
	var said []string
	in := script.NewInterpreter(
		script.WithClock(clock),
		script.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		script.WithSayFunc(func(program, text string) {
			said = append(said, program+":"+text)
		}),
	)
	return in, clock, &said
}

func newScope(depthLimit int) *sched.Scope {
	return &sched.Scope{
		Vars:  make(map[string]any),
		Guard: sched.NewCallStackGuard(depthLimit),
	}
}

func TestProgram_Validate(t *testing.T) {
	tests := []struct {
		name    string
		program script.Program
		wantErr string
	}{
		{
			name: "valid",
			program: script.Program{Name: "p", Blocks: []script.Block{
				{Op: script.OpSet, Target: "n", Value: 1},
				{Op: script.OpSay, Text: "hi"},
				{Op: script.OpWait, Wait: time.Millisecond},
				{Op: script.OpStop},
			}},
		},
		{
			name:    "missing name",
			program: script.Program{},
			wantErr: "name is required",
		},
		{
			name: "set without target",
			program: script.Program{Name: "p", Blocks: []script.Block{
				{Op: script.OpSet},
			}},
			wantErr: "set requires a target",
		},
		{
			name: "wait without duration",
			program: script.Program{Name: "p", Blocks: []script.Block{
				{Op: script.OpWait},
			}},
			wantErr: "wait requires a positive duration",
		},
		{
			name: "call without target",
			program: script.Program{Name: "p", Blocks: []script.Block{
				{Op: script.OpCall},
			}},
			wantErr: "call requires a program name",
		},
		{
			name: "unknown op",
			program: script.Program{Name: "p", Blocks: []script.Block{
				{Op: "teleport"},
			}},
			wantErr: `unknown op "teleport"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.program.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInterpreter_RegisterRejectsDuplicates(t *testing.T) {
	in, _, _ := newInterpreter(t)

	require.NoError(t, in.Register(script.Program{Name: "p", Blocks: []script.Block{{Op: script.OpStop}}}))
	err := in.Register(script.Program{Name: "p", Blocks: []script.Block{{Op: script.OpStop}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate program name")
}

func TestInterpreter_BlockIDsAssignedAtRegistration(t *testing.T) {
	in, _, _ := newInterpreter(t)
	require.NoError(t, in.Register(script.Program{Name: "p", Blocks: []script.Block{
		{Op: script.OpSet, Target: "n", Value: 1},
		{ID: "custom", Op: script.OpStop},
	}}))

	step, err := in.StepFunc("p")
	require.NoError(t, err)

	sc := newScope(0)
	res, err := step(sc)
	require.NoError(t, err)
	assert.Equal(t, []sched.BlockID{"p/0"}, res.Consumed)

	res, err = step(sc)
	require.NoError(t, err)
	assert.Equal(t, []sched.BlockID{"custom"}, res.Consumed)
	assert.True(t, res.Ended)
}

func TestInterpreter_OneBlockPerStep(t *testing.T) {
	in, _, said := newInterpreter(t)
	require.NoError(t, in.Register(script.Program{Name: "p", Blocks: []script.Block{
		{Op: script.OpSet, Target: "n", Value: 5},
		{Op: script.OpAdd, Target: "n", Value: 3},
		{Op: script.OpSay, Text: "done"},
	}}))

	step, err := in.StepFunc("p")
	require.NoError(t, err)
	sc := newScope(0)

	res, err := step(sc)
	require.NoError(t, err)
	assert.False(t, res.Ended)
	assert.Equal(t, int64(5), sc.Vars["n"])

	res, err = step(sc)
	require.NoError(t, err)
	assert.False(t, res.Ended)
	assert.Equal(t, int64(8), sc.Vars["n"])

	res, err = step(sc)
	require.NoError(t, err)
	assert.True(t, res.Ended, "cursor past the last block ends the script")
	assert.Equal(t, []string{"p:done"}, *said)
}

func TestInterpreter_LoopProgramWrapsAndReportsLooped(t *testing.T) {
	in, _, _ := newInterpreter(t)
	require.NoError(t, in.Register(script.Program{Name: "forever", Loop: true, Blocks: []script.Block{
		{Op: script.OpAdd, Target: "n", Value: 1},
		{Op: script.OpAdd, Target: "m", Value: 1},
	}}))

	step, err := in.StepFunc("forever")
	require.NoError(t, err)
	sc := newScope(0)

	for i := 0; i < 5; i++ {
		res, err := step(sc)
		require.NoError(t, err)
		assert.True(t, res.Looped)
		assert.False(t, res.Ended, "loop programs never end on their own")
	}
	assert.Equal(t, int64(3), sc.Vars["n"])
	assert.Equal(t, int64(2), sc.Vars["m"])
}

func TestInterpreter_WaitProducesContinuation(t *testing.T) {
	in, clock, _ := newInterpreter(t)
	require.NoError(t, in.Register(script.Program{Name: "w", Blocks: []script.Block{
		{Op: script.OpWait, Wait: 250 * time.Millisecond},
		{Op: script.OpSay, Text: "after"},
	}}))

	step, err := in.StepFunc("w")
	require.NoError(t, err)
	sc := newScope(0)

	res, err := step(sc)
	require.NoError(t, err)
	require.NotNil(t, res.Continuation)
	assert.False(t, res.Ended)
	assert.False(t, res.Continuation.Ready(clock.Now()))
	assert.True(t, res.Continuation.Ready(epoch.Add(250*time.Millisecond)))
}

func TestInterpreter_TrailingWaitThenEnd(t *testing.T) {
	in, _, _ := newInterpreter(t)
	require.NoError(t, in.Register(script.Program{Name: "w", Blocks: []script.Block{
		{Op: script.OpWait, Wait: time.Millisecond},
	}}))

	step, err := in.StepFunc("w")
	require.NoError(t, err)
	sc := newScope(0)

	res, err := step(sc)
	require.NoError(t, err)
	require.NotNil(t, res.Continuation)
	assert.False(t, res.Ended, "the wait must complete before the script ends")

	res, err = step(sc)
	require.NoError(t, err)
	assert.True(t, res.Ended)
	assert.Empty(t, res.Consumed)
}

func TestInterpreter_StopEndsEarly(t *testing.T) {
	in, _, said := newInterpreter(t)
	require.NoError(t, in.Register(script.Program{Name: "p", Blocks: []script.Block{
		{Op: script.OpStop},
		{Op: script.OpSay, Text: "unreachable"},
	}}))

	step, err := in.StepFunc("p")
	require.NoError(t, err)

	res, err := step(newScope(0))
	require.NoError(t, err)
	assert.True(t, res.Ended)
	assert.Empty(t, *said)
}

func TestInterpreter_CallConsumesCalleeBlocks(t *testing.T) {
	in, _, _ := newInterpreter(t)
	require.NoError(t, in.Register(script.Program{Name: "sub", Blocks: []script.Block{
		{Op: script.OpAdd, Target: "n", Value: 10},
		{Op: script.OpAdd, Target: "n", Value: 1},
	}}))
	require.NoError(t, in.Register(script.Program{Name: "main", Blocks: []script.Block{
		{Op: script.OpCall, Call: "sub"},
	}}))

	step, err := in.StepFunc("main")
	require.NoError(t, err)
	sc := newScope(0)

	res, err := step(sc)
	require.NoError(t, err)
	assert.Equal(t, []sched.BlockID{"main/0", "sub/0", "sub/1"}, res.Consumed)
	assert.Equal(t, int64(11), sc.Vars["n"])
	assert.True(t, res.Ended)
	assert.Equal(t, 0, sc.Guard.Depth(), "guard depth restored after the call")
}

func TestInterpreter_RecursionTripsGuard(t *testing.T) {
	in, _, _ := newInterpreter(t)
	require.NoError(t, in.Register(script.Program{Name: "rec", Blocks: []script.Block{
		{Op: script.OpAdd, Target: "depth", Value: 1},
		{Op: script.OpCall, Call: "rec"},
	}}))

	step, err := in.StepFunc("rec")
	require.NoError(t, err)
	sc := newScope(16)

	_, err = step(sc) // first step executes the add
	require.NoError(t, err)

	_, err = step(sc) // second step recurses
	require.Error(t, err)
	assert.True(t, sched.IsStackDepthError(err))
	assert.Equal(t, int64(17), sc.Vars["depth"], "sixteen nested calls plus the top-level add")
}

func TestInterpreter_CallUnknownProgram(t *testing.T) {
	in, _, _ := newInterpreter(t)
	require.NoError(t, in.Register(script.Program{Name: "p", Blocks: []script.Block{
		{Op: script.OpCall, Call: "ghost"},
	}}))

	step, err := in.StepFunc("p")
	require.NoError(t, err)

	_, err = step(newScope(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestInterpreter_WaitInsideCallRejected(t *testing.T) {
	in, _, _ := newInterpreter(t)
	require.NoError(t, in.Register(script.Program{Name: "sub", Blocks: []script.Block{
		{Op: script.OpWait, Wait: time.Millisecond},
	}}))
	require.NoError(t, in.Register(script.Program{Name: "main", Blocks: []script.Block{
		{Op: script.OpCall, Call: "sub"},
	}}))

	step, err := in.StepFunc("main")
	require.NoError(t, err)

	_, err = step(newScope(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wait is not allowed")
}

func TestInterpreter_StepFuncUnknownProgram(t *testing.T) {
	in, _, _ := newInterpreter(t)
	_, err := in.StepFunc("ghost")
	require.Error(t, err)
}

// End-to-end: interpreter-driven executors under the real scheduler.
func TestInterpreter_UnderScheduler(t *testing.T) {
	clock := testutil.NewFakeClock(epoch)
	in, _, said := newInterpreter(t)

	require.NoError(t, in.Register(script.Program{Name: "greet", Blocks: []script.Block{
		{Op: script.OpSay, Text: "hello"},
		{Op: script.OpWait, Wait: 20 * time.Millisecond},
		{Op: script.OpSay, Text: "goodbye"},
	}}))
	require.NoError(t, in.Register(script.Program{Name: "count", Loop: true, Blocks: []script.Block{
		{Op: script.OpAdd, Target: "n", Value: 1},
	}}))

	s := sched.New(
		sched.WithConfig(sched.Config{TurboEnabled: true, MaxIterationsPerFrame: 10}),
		sched.WithClock(clock),
		sched.WithIDGenerator(sched.NewFixedIDGenerator("greet", "count")),
		sched.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	rec := testutil.NewEndRecorder()
	s.OnExecutorEnded(rec.Record)

	greetStep, err := in.StepFunc("greet")
	require.NoError(t, err)
	countStep, err := in.StepFunc("count")
	require.NoError(t, err)

	greetID := s.Start(greetStep)
	countID := s.Start(countStep, sched.AsLoop())

	s.Tick() // greet says hello
	assert.Equal(t, []string{"greet:hello"}, *said)

	s.Tick() // greet parks on the wait
	assert.Equal(t, 1, s.PendingCount())

	clock.Advance(20 * time.Millisecond)
	s.Tick() // wait resolves, goodbye on the resumed step
	assert.Equal(t, []string{"greet:hello", "greet:goodbye"}, *said)
	assert.Equal(t, 1, rec.Count(greetID))

	countEx, ok := s.Executor(countID)
	require.True(t, ok)
	n, _ := countEx.Scope().Vars["n"].(int64)
	assert.Greater(t, n, int64(10), "loop program re-entered across ticks")
}
