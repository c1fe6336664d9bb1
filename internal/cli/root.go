package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Color   string // "auto" | "on" | "off"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidColorModes defines the allowed --color values.
var ValidColorModes = []string{"auto", "on", "off"}

// NewRootCommand creates the root command for the vcdsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "vcdsync",
		Short: "Align and merge VCD traces on their reset release",
		Long: "vcdsync reads value change dump traces, finds the tick at which each\n" +
			"trace's reset is finally released, and merges the traces into one file\n" +
			"with those ticks aligned.",
		SilenceErrors: true, // main prints errors the commands did not report
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return setColorMode(opts.Color)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Color, "color", "auto", "colorize text output (auto|on|off)")

	// Add subcommands
	cmd.AddCommand(NewMergeCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// newLogger returns the diagnostic logger for a command. Progress records
// are shown only with --verbose.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
