package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vcdsync/internal/ir"
	"github.com/roach88/vcdsync/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Reset string
}

// TraceResult describes a single loaded trace.
type TraceResult struct {
	Input       string       `json:"input"`
	Timescale   ir.Timescale `json:"timescale"`
	ResetSignal string       `json:"reset_signal"`
	Edges       []trace.Edge `json:"edges"`
	ResetEnd    uint64       `json:"reset_end"`
	Signals     []string     `json:"signals"`
	Stats       TraceStats   `json:"stats"`
	Digest      string       `json:"digest"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Ticks    int    `json:"ticks"`
	Events   int    `json:"events"`
	LastTick uint64 `json:"last_tick"`
	Dropped  int    `json:"dropped"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <input>",
		Short: "Show the reset analysis of one trace",
		Long: `Load one VCD trace and show what a merge would see: the timescale,
the collected signals, every observed value of the reset signal and the
resulting reset-end tick.

Examples:
  vcdsync trace sim.vcd --reset tb.dut.rst_n
  vcdsync trace sim.vcd --reset rst_n --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Reset, "reset", "", "reset signal path or leaf name (required)")
	_ = cmd.MarkFlagRequired("reset")

	return cmd
}

func runTrace(opts *TraceOptions, input string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loader := &trace.Loader{Reset: opts.Reset, Logger: newLogger(opts.RootOptions, cmd.ErrOrStderr())}
	loaded, err := loader.LoadFile(input)
	if err != nil {
		return fail(formatter, ExitCommandError, "failed to load trace", err)
	}

	digest, err := ir.TraceDigest(loaded.Trace)
	if err != nil {
		return fail(formatter, ExitCommandError, "failed to hash trace", err)
	}

	t := loaded.Trace
	result := TraceResult{
		Input:       input,
		Timescale:   t.Timescale,
		ResetSignal: loaded.ResetSignal,
		Edges:       loaded.Edges,
		ResetEnd:    t.ResetEnd,
		Signals:     t.Names(),
		Stats: TraceStats{
			Ticks:   t.Events.Len(),
			Events:  t.Events.Count(),
			Dropped: loaded.Dropped,
		},
		Digest: digest,
	}
	if last, ok := t.Events.Last(); ok {
		result.Stats.LastTick = last
	}
	if result.Edges == nil {
		result.Edges = []trace.Edge{}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	outputTraceText(formatter, result)
	return nil
}

func outputTraceText(formatter *OutputFormatter, r TraceResult) {
	w := formatter.Writer

	fmt.Fprintf(w, "Trace: %s\n", r.Input)
	fmt.Fprintf(w, "Timescale: %s\n", r.Timescale)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Signals (%d):\n", len(r.Signals))
	for i, name := range r.Signals {
		fmt.Fprintf(w, "  [%d] %s\n", i, name)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Reset: %s\n", r.ResetSignal)
	if len(r.Edges) == 0 {
		fmt.Fprintln(w, "  (no changes)")
	}
	for _, e := range r.Edges {
		state := "active"
		if e.Value {
			state = "inactive"
		}
		fmt.Fprintf(w, "  #%d %s\n", e.Tick, state)
	}
	fmt.Fprintf(w, "Reset end: %d\n", r.ResetEnd)
	fmt.Fprintln(w)

	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "Ticks: %d | Events: %d | Last tick: %d\n", r.Stats.Ticks, r.Stats.Events, r.Stats.LastTick)
	if r.Stats.Dropped > 0 {
		fmt.Fprintf(w, "Dropped changes on undeclared identifiers: %d\n", r.Stats.Dropped)
	}
	fmt.Fprintf(w, "Digest: %s\n", r.Digest)
}
