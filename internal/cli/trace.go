package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stagehand/internal/query"
	"github.com/roach88/stagehand/internal/store"
	"github.com/roach88/stagehand/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database   string
	ExecutorID string
	Kind       string
	FromTick   int64
	ToTick     int64
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Timeline []trace.Event `json:"timeline"`
	Stats    TraceStats    `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int   `json:"total_events"`
	BlockEvents int   `json:"block_events"`
	EndEvents   int   `json:"end_events"`
	ErrorEnds   int   `json:"error_ends"`
	FirstTick   int64 `json:"first_tick"`
	LastTick    int64 `json:"last_tick"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Query a recorded trace database",
		Long: `Query events from a recorded trace database.

Shows the per-tick timeline of executed blocks and executor endings,
plus summary statistics for the selected range.

Examples:
  stagehand trace --db ./trace.db
  stagehand trace --db ./trace.db --kind end
  stagehand trace --db ./trace.db --executor <id> --from-tick 10 --to-tick 20
  stagehand trace --db ./trace.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.ExecutorID, "executor", "", "filter end events to one executor")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter by event kind (blocks|end)")
	cmd.Flags().Int64Var(&opts.FromTick, "from-tick", 0, "first tick to include (inclusive)")
	cmd.Flags().Int64Var(&opts.ToTick, "to-tick", 0, "last tick to include (inclusive, 0 = unbounded)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	f := query.Filter{
		ExecutorID: opts.ExecutorID,
		Kind:       opts.Kind,
		FromTick:   opts.FromTick,
		ToTick:     opts.ToTick,
	}
	if err := f.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	events, err := st.ReadEvents(ctx, f)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	result := TraceResult{
		Timeline: events,
		Stats:    buildStats(events),
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result)
}

// buildStats summarizes the selected events.
func buildStats(events []trace.Event) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	for i, ev := range events {
		if i == 0 || ev.Tick < stats.FirstTick {
			stats.FirstTick = ev.Tick
		}
		if ev.Tick > stats.LastTick {
			stats.LastTick = ev.Tick
		}
		switch ev.Kind {
		case trace.KindBlocks:
			stats.BlockEvents++
		case trace.KindEnd:
			stats.EndEvents++
			if ev.Error != "" {
				stats.ErrorEnds++
			}
		}
	}
	return stats
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	} else {
		for _, ev := range result.Timeline {
			formatTimelineEvent(w, ev)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Block Events: %d\n", result.Stats.BlockEvents)
	fmt.Fprintf(w, "  End Events:   %d\n", result.Stats.EndEvents)
	fmt.Fprintf(w, "  Error Ends:   %d\n", result.Stats.ErrorEnds)
	if result.Stats.TotalEvents > 0 {
		fmt.Fprintf(w, "  Tick Range:   %d-%d\n", result.Stats.FirstTick, result.Stats.LastTick)
	}

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w interface{ Write([]byte) (int, error) }, ev trace.Event) {
	switch ev.Kind {
	case trace.KindBlocks:
		fmt.Fprintf(w, "  [%d] tick %d BLOCKS %s\n", ev.Seq, ev.Tick, strings.Join(ev.Blocks, ", "))
	case trace.KindEnd:
		if ev.Error != "" {
			fmt.Fprintf(w, "  [%d] tick %d END %s (error: %s)\n", ev.Seq, ev.Tick, truncateID(ev.ExecutorID), ev.Error)
		} else {
			fmt.Fprintf(w, "  [%d] tick %d END %s\n", ev.Seq, ev.Tick, truncateID(ev.ExecutorID))
		}
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
