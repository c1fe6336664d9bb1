package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/vcdsync/internal/store"
	"github.com/roach88/vcdsync/internal/trace"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	ID       string // optional - trace id or unique prefix
	Output   string // optional - file to write the trace to
	Module   string
}

// ReplayListResult holds the archive listing.
type ReplayListResult struct {
	Traces      []store.Record `json:"traces"`
	TotalTraces int            `json:"total_traces"`
}

// ReplayTraceResult holds one re-emitted trace.
type ReplayTraceResult struct {
	Record store.Record `json:"record"`
	Output string       `json:"output,omitempty"`
	VCD    string       `json:"vcd,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "List archived merges or re-emit one as VCD",
		Long: `Read merged traces archived with merge --db.

Without --id every archived trace is listed, oldest first. With --id the
trace is read back, checked against its recorded digest and written as VCD
to --output, or to stdout.

Exit codes:
  0 - Listing or trace written
  1 - Archived trace does not match its digest
  2 - Command error (database not found, unknown id, etc.)

Examples:
  vcdsync replay --db runs.db
  vcdsync replay --db runs.db --id 01927c3e --output merged.vcd
  vcdsync replay --db runs.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.ID, "id", "", "trace id or unique id prefix")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the trace to this file instead of stdout")
	cmd.Flags().StringVar(&opts.Module, "module", trace.DefaultModule, "module name of the emitted scope")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// Replay never creates an archive.
	if _, err := os.Stat(opts.Database); err != nil {
		return fail(formatter, ExitCommandError, "failed to open database", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return fail(formatter, ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.ID == "" {
		return listArchive(ctx, st, formatter)
	}
	return replayTrace(ctx, st, opts, formatter)
}

func listArchive(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	records, err := st.ListTraces(ctx)
	if err != nil {
		return fail(formatter, ExitCommandError, "failed to list traces", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(ReplayListResult{Traces: records, TotalTraces: len(records)})
	}

	w := formatter.Writer
	if len(records) == 0 {
		fmt.Fprintln(w, "No traces found in database.")
		return nil
	}
	for _, rec := range records {
		fmt.Fprintf(w, "%s  %-20s %s  %d signals, %d events, %d input(s)\n",
			rec.ID, rec.Label, rec.Timescale, rec.Signals, rec.Events, len(rec.Inputs))
	}
	fmt.Fprintf(w, "\n%d trace(s)\n", len(records))
	return nil
}

func replayTrace(ctx context.Context, st *store.Store, opts *ReplayOptions, formatter *OutputFormatter) error {
	id, err := st.ResolveID(ctx, opts.ID)
	if err != nil {
		return fail(formatter, ExitCommandError, "failed to resolve trace id", err)
	}

	t, rec, err := st.ReadTrace(ctx, id)
	if errors.Is(err, store.ErrDigestMismatch) {
		// Corruption is a verification failure, not a usage error
		return fail(formatter, ExitFailure, "archived trace failed verification", err)
	}
	if err != nil {
		return fail(formatter, ExitCommandError, "failed to read trace", err)
	}
	formatter.VerboseLog("Read %s (%s): %d signals, %d events", rec.ID, rec.Label, rec.Signals, rec.Events)

	wopts := trace.WriteOptions{Module: opts.Module}
	result := ReplayTraceResult{Record: rec}

	if opts.Output != "" {
		if err := trace.WriteFile(opts.Output, t, wopts); err != nil {
			return fail(formatter, ExitCommandError, "failed to write output", err)
		}
		result.Output = opts.Output
		if formatter.Format == "json" {
			return formatter.Success(result)
		}
		fmt.Fprintf(formatter.Writer, "%s Wrote %s to %s\n", okMark(), rec.ID, opts.Output)
		return nil
	}

	if formatter.Format == "json" {
		var buf bytes.Buffer
		if err := trace.Write(&buf, t, wopts); err != nil {
			return fail(formatter, ExitCommandError, "failed to render trace", err)
		}
		result.VCD = buf.String()
		return formatter.Success(result)
	}

	if err := trace.Write(formatter.Writer, t, wopts); err != nil {
		return fail(formatter, ExitCommandError, "failed to write trace", err)
	}
	return nil
}
