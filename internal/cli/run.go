package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stagehand/internal/sched"
	"github.com/roach88/stagehand/internal/script"
	"github.com/roach88/stagehand/internal/store"
	"github.com/roach88/stagehand/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database      string
	Ticks         int
	TickTime      time.Duration
	Turbo         bool
	MaxIterations int

	// IDGen allows overriding the executor ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGen sched.IDGenerator

	// Clock allows overriding the scheduler clock (for testing).
	Clock sched.Clock
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <programs-dir>",
		Short: "Run programs on the frame scheduler",
		Long: `Run compiled program definitions on the frame-budgeted scheduler.

Each program becomes one executor. The scheduler advances all executors
once per frame, then re-enters loop programs until the frame budget is
spent. The run ends when every executor has ended, when --ticks frames
have elapsed, or on Ctrl-C.

Example:
  stagehand run ./programs
  stagehand run ./programs --ticks 600 --trace-db ./trace.db
  stagehand run ./programs --turbo --max-iterations 100000`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "trace-db", "", "path to SQLite database for recorded trace (optional)")
	cmd.Flags().IntVar(&opts.Ticks, "ticks", 0, "number of frames to run (0 = until all executors end)")
	cmd.Flags().DurationVar(&opts.TickTime, "tick-time", sched.DefaultTickTime, "wall-clock budget per frame")
	cmd.Flags().BoolVar(&opts.Turbo, "turbo", false, "ignore the wall clock, re-enter loops up to --max-iterations")
	cmd.Flags().IntVar(&opts.MaxIterations, "max-iterations", 0, "turbo iteration cap per frame (0 = unlimited)")

	return cmd
}

func runScheduler(opts *RunOptions, programsDir string, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg := sched.Config{
		TickTime:              opts.TickTime,
		TurboEnabled:          opts.Turbo,
		MaxIterationsPerFrame: opts.MaxIterations,
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid scheduler configuration", err)
	}

	logger.Info("loading programs", "dir", programsDir)
	loaded, err := LoadPrograms(programsDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load programs", err)
	}
	logger.Info("programs loaded", "count", len(loaded.Programs))

	interp := script.NewInterpreter(
		script.WithLogger(logger),
		script.WithSayFunc(func(program, text string) {
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", program, text)
		}),
	)
	for _, p := range loaded.Programs {
		if err := interp.Register(*p); err != nil {
			return WrapExitError(ExitCommandError, "failed to register program", err)
		}
	}

	schedOpts := []sched.Option{
		sched.WithConfig(cfg),
		sched.WithLogger(logger),
	}
	if opts.IDGen != nil {
		schedOpts = append(schedOpts, sched.WithIDGenerator(opts.IDGen))
	}
	if opts.Clock != nil {
		schedOpts = append(schedOpts, sched.WithClock(opts.Clock))
	}
	scheduler := sched.New(schedOpts...)
	recorder := trace.NewRecorder(scheduler)

	for _, p := range loaded.Programs {
		step, err := interp.StepFunc(p.Name)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to resolve program", err)
		}
		var startOpts []sched.StartOption
		if p.Loop {
			startOpts = append(startOpts, sched.AsLoop())
		}
		id := scheduler.Start(step, startOpts...)
		logger.Debug("executor started", "program", p.Name, "executor", id, "loop", p.Loop)
	}

	// Setup signal handling for graceful shutdown
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("scheduler starting",
		"executors", scheduler.ActiveCount(),
		"tick_time", cfg.TickTime,
		"turbo", cfg.TurboEnabled)

	runFrames(ctx, scheduler, cfg, opts.Ticks)

	events := recorder.Events()
	if opts.Database != "" {
		// Persist with a fresh context: ctx is already cancelled when
		// the run was stopped by a signal.
		if err := persistTrace(context.Background(), opts.Database, events); err != nil {
			return WrapExitError(ExitCommandError, "failed to persist trace", err)
		}
		logger.Info("trace persisted", "db", opts.Database, "events", len(events))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ran %d tick(s), %d executor(s) still active, %d trace event(s).\n",
		scheduler.Ticks(), scheduler.ActiveCount(), len(events))
	return nil
}

// runFrames drives the scheduler until the tick limit, drain, or
// cancellation. In turbo mode frames run back to back; otherwise a
// ticker paces them at the configured frame interval.
func runFrames(ctx context.Context, s *sched.Scheduler, cfg sched.Config, maxTicks int) {
	var frameCh <-chan time.Time
	if !cfg.TurboEnabled {
		ticker := time.NewTicker(cfg.TickTime)
		defer ticker.Stop()
		frameCh = ticker.C
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if maxTicks > 0 && s.Ticks() >= int64(maxTicks) {
			return
		}
		if s.ActiveCount() == 0 && s.PendingCount() == 0 {
			return
		}

		if frameCh != nil {
			select {
			case <-ctx.Done():
				return
			case <-frameCh:
			}
		}
		s.Tick()
	}
}

// persistTrace writes the recorded events to a SQLite trace database.
func persistTrace(ctx context.Context, path string, events []trace.Event) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.WriteEvents(ctx, events)
}
