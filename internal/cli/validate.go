package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results for JSON output.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Programs []string `json:"programs,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <programs-dir>",
		Short: "Validate program definitions without running them",
		Long: `Validate CUE program definitions without starting the scheduler.

Performs syntax checking, block shape validation, and call target
checks. Faster than run for development feedback.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	result, err := LoadPrograms(dir)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			return NewExitError(exitCodeForLoadError(loadErr), loadErr.Error())
		}
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, dir)

	names := make([]string, len(result.Programs))
	for i, p := range result.Programs {
		names[i] = p.Name
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Programs: names})
	}

	fmt.Fprintf(formatter.Writer, "✓ %d program(s) valid\n", len(names))
	for _, name := range names {
		fmt.Fprintf(formatter.Writer, "  %s\n", name)
	}
	return nil
}

// exitCodeForLoadError distinguishes bad input paths (command errors)
// from invalid program definitions (validation failures).
func exitCodeForLoadError(err *LoadError) int {
	switch err.Code {
	case ErrCodeNotFound, ErrCodeScanError, ErrCodeNoFiles:
		return ExitCommandError
	default:
		return ExitFailure
	}
}
