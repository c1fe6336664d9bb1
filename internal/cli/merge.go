package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vcdsync/internal/config"
	"github.com/roach88/vcdsync/internal/ir"
	"github.com/roach88/vcdsync/internal/merge"
	"github.com/roach88/vcdsync/internal/store"
	"github.com/roach88/vcdsync/internal/trace"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	*RootOptions
	Reset  string
	Output string
	Module string
	Config string // optional job file
	DB     string // optional archive
	Label  string // archive label, defaults to the output file name
}

// MergeResult summarizes a completed merge.
type MergeResult struct {
	Output    string            `json:"output"`
	Module    string            `json:"module"`
	Timescale ir.Timescale      `json:"timescale"`
	ResetEnds map[string]uint64 `json:"reset_ends"`
	Steps     []merge.Step      `json:"steps"`
	Signals   int               `json:"signals"`
	Events    int               `json:"events"`
	Digest    string            `json:"digest"`
	TraceID   string            `json:"trace_id,omitempty"`
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "merge <input>...",
		Short: "Merge traces aligned on their reset release",
		Long: `Merge two or more VCD traces into one.

Each input is scanned for the last tick at which the reset signal is
inactive. Traces are then folded pairwise: the trace whose reset ended
later keeps its timeline and the other is shifted forward by the
difference. Colliding signal names get a numeric suffix (clk, clk_2).

Inputs, reset, output, module and archive may also come from a job file
(--config job.cue|job.yaml|job.toml). Command-line values win.

Exit codes:
  0 - Merged trace written
  2 - Command error (unreadable input, timescale mismatch, reset not found, etc.)

Examples:
  vcdsync merge a.vcd b.vcd --reset tb.rst_n --output merged.vcd
  vcdsync merge a.vcd b.vcd c.vcd --reset rst_n --output out.vcd --module soc
  vcdsync merge --config job.cue --db runs.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Reset, "reset", "", "reset signal path or leaf name")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "merged trace file")
	cmd.Flags().StringVar(&opts.Module, "module", "", "module name of the merged scope (default \"top\")")
	cmd.Flags().StringVar(&opts.Config, "config", "", "job file (.cue, .yaml, .yml or .toml)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "archive the merged trace in this SQLite database")
	cmd.Flags().StringVar(&opts.Label, "label", "", "archive label (default: output file name)")

	return cmd
}

func runMerge(opts *MergeOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	job, err := resolveJob(opts, args)
	if err != nil {
		return fail(formatter, ExitCommandError, "invalid merge job", err)
	}
	formatter.VerboseLog("Merging %d input(s) into %s", len(job.Inputs), job.Output)

	var st *store.Store
	if job.DB != "" {
		st, err = store.Open(job.DB)
		if err != nil {
			return fail(formatter, ExitCommandError, "failed to open archive", err)
		}
		defer st.Close()
	}

	traces, resetEnds, err := loadInputs(job.Inputs, job.Reset, logger)
	if err != nil {
		return fail(formatter, ExitCommandError, "failed to load input", err)
	}

	merged, steps, err := merge.Fold(traces, merge.Options{Logger: logger})
	if err != nil {
		return fail(formatter, ExitCommandError, "cannot merge inputs", err)
	}

	if err := trace.WriteFile(job.Output, merged, trace.WriteOptions{Module: job.Module}); err != nil {
		return fail(formatter, ExitCommandError, "failed to write output", err)
	}

	result := MergeResult{
		Output:    job.Output,
		Module:    job.Module,
		Timescale: merged.Timescale,
		ResetEnds: resetEnds,
		Steps:     steps,
		Signals:   len(merged.Signals),
		Events:    merged.Events.Count(),
	}

	if st != nil {
		label := opts.Label
		if label == "" {
			label = filepath.Base(job.Output)
		}
		rec, err := st.WriteTrace(context.Background(), merged, store.Meta{
			Label:  label,
			Inputs: job.Inputs,
			Steps:  steps,
		})
		if err != nil {
			_ = os.Remove(job.Output)
			return fail(formatter, ExitCommandError, "failed to archive merged trace", err)
		}
		result.Digest = rec.Digest
		result.TraceID = rec.ID
		logger.Info("archived merged trace", "db", job.DB, "id", rec.ID)
	} else {
		result.Digest, err = ir.TraceDigest(merged)
		if err != nil {
			return fail(formatter, ExitCommandError, "failed to hash merged trace", err)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	outputMergeText(formatter, result)
	return nil
}

// resolveJob builds the merge job from the optional job file and the
// command line. Non-empty flags and positional inputs override the file.
func resolveJob(opts *MergeOptions, args []string) (*config.Job, error) {
	job := &config.Job{}
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return nil, err
		}
		job = loaded
	}

	if len(args) > 0 {
		job.Inputs = args
	}
	if opts.Reset != "" {
		job.Reset = opts.Reset
	}
	if opts.Output != "" {
		job.Output = opts.Output
	}
	if opts.Module != "" {
		job.Module = opts.Module
	}
	if opts.DB != "" {
		job.DB = opts.DB
	}

	if err := job.Check(); err != nil {
		return nil, err
	}
	return job, nil
}

// loadInputs loads every input path with the same reset signal.
func loadInputs(paths []string, reset string, logger *slog.Logger) ([]*ir.Trace, map[string]uint64, error) {
	loader := &trace.Loader{Reset: reset, Logger: logger}
	traces := make([]*ir.Trace, 0, len(paths))
	resetEnds := make(map[string]uint64, len(paths))
	for _, p := range paths {
		loaded, err := loader.LoadFile(p)
		if err != nil {
			return nil, nil, err
		}
		traces = append(traces, loaded.Trace)
		resetEnds[p] = loaded.Trace.ResetEnd
	}
	return traces, resetEnds, nil
}

func outputMergeText(formatter *OutputFormatter, r MergeResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "%s Merged %d trace(s) into %s\n", okMark(), len(r.Steps)+1, r.Output)
	fmt.Fprintf(w, "  timescale: %s\n", r.Timescale)
	for _, st := range r.Steps {
		fmt.Fprintf(w, "  %s <- %s  skew %d, ids from %d", st.Receiver, st.Donor, st.Skew, st.IDOffset)
		if len(st.Renames) > 0 {
			renames := make([]string, len(st.Renames))
			for i, rn := range st.Renames {
				renames[i] = rn.From + " -> " + rn.To
			}
			fmt.Fprintf(w, ", renamed %s", strings.Join(renames, ", "))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "  signals: %d, events: %d\n", r.Signals, r.Events)
	fmt.Fprintf(w, "  digest: %s\n", r.Digest)
	if r.TraceID != "" {
		fmt.Fprintf(w, "  archived as %s\n", r.TraceID)
	}
}
