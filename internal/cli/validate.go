package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vcdsync/internal/merge"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Reset string
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Timescale string            `json:"timescale,omitempty"`
	ResetEnds map[string]uint64 `json:"reset_ends"`
	Signals   int               `json:"signals"`
	Error     string            `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <input>...",
		Short: "Check that traces can be merged without writing anything",
		Long: `Load every input, locate its reset release and check that the traces
can be merged: at least two inputs, identical timescales and a combined
signal count that fits the identifier space.

Exit codes:
  0 - Inputs can be merged
  1 - Inputs load but cannot be merged together
  2 - Command error (unreadable input, missing timescale, reset not found)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Reset, "reset", "", "reset signal path or leaf name (required)")
	_ = cmd.MarkFlagRequired("reset")

	return cmd
}

func runValidate(opts *ValidateOptions, inputs []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	traces, resetEnds, err := loadInputs(inputs, opts.Reset, logger)
	if err != nil {
		return fail(formatter, ExitCommandError, "failed to load input", err)
	}

	result := ValidationResult{Valid: true, ResetEnds: resetEnds}
	for _, t := range traces {
		formatter.VerboseLog("%s: %s, %d signal(s), reset ends at %d", t.Name, t.Timescale, len(t.Signals), t.ResetEnd)
		result.Signals += len(t.Signals)
	}
	result.Timescale = traces[0].Timescale.String()

	if err := merge.Validate(traces); err != nil {
		result.Valid = false
		result.Error = err.Error()
		return outputValidationFailure(formatter, result, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "%s %d input(s) can be merged (%s, %d signals)\n",
		okMark(), len(inputs), result.Timescale, result.Signals)
	return nil
}

// outputValidationFailure reports inputs that load but cannot be merged.
func outputValidationFailure(formatter *OutputFormatter, result ValidationResult, err error) error {
	code := errorCode(err)
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: code, Message: err.Error()},
		}
		if encErr := encodeIndented(formatter.Writer, response); encErr != nil {
			return encErr
		}
		// Validation failures = exit code 1 (test/validation failure)
		return WrapExitError(ExitFailure, code+": validation failed", err)
	}

	fmt.Fprintf(formatter.Writer, "%s Validation failed\n", failMark())
	fmt.Fprintf(formatter.Writer, "  %s: %s\n", code, err)

	// Validation failures = exit code 1 (test/validation failure)
	return WrapExitError(ExitFailure, code+": validation failed", err)
}
