package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/roach88/vcdsync/internal/ir"
	"github.com/roach88/vcdsync/internal/merge"
	"github.com/roach88/vcdsync/internal/store"
	"github.com/roach88/vcdsync/internal/trace"
)

// Harness is the scenario execution engine.
type Harness struct {
	store  *store.Store
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory archive for isolation.
//
// Execution flow:
// 1. Load every input with the scenario's reset path
// 2. Fold the traces into one
// 3. Render the merged trace as VCD
// 4. Archive the merged trace and read it back
// 5. Evaluate assertions
//
// A failed load or merge is not an error of Run: it is recorded in
// MergeError, where merge_error assertions can match it.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	result := NewResult()
	if err := h.execute(context.Background(), scenario, result); err != nil {
		return nil, err
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	if result.MergeError != "" && !expectsMergeError(scenario.Assertions) {
		result.AddError("merge failed: " + result.MergeError)
	}

	return result, nil
}

func (h *Harness) execute(ctx context.Context, scenario *Scenario, result *Result) error {
	loader := &trace.Loader{Reset: scenario.Reset, Logger: h.logger}

	traces := make([]*ir.Trace, 0, len(scenario.Inputs))
	inputs := make([]string, 0, len(scenario.Inputs))
	for _, in := range scenario.Inputs {
		loaded, err := h.load(loader, in)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("failed to open input: %w", err)
			}
			result.MergeError = err.Error()
			return nil
		}
		result.ResetEnds[in.Name] = loaded.Trace.ResetEnd
		traces = append(traces, loaded.Trace)
		inputs = append(inputs, in.Name)
	}

	merged, steps, err := merge.Fold(traces, merge.Options{Logger: h.logger})
	if err != nil {
		result.MergeError = err.Error()
		return nil
	}
	result.Merged = merged
	result.Steps = steps
	result.Signals = merged.Names()

	var buf bytes.Buffer
	if err := trace.Write(&buf, merged, trace.WriteOptions{Module: scenario.Module}); err != nil {
		return fmt.Errorf("failed to render merged trace: %w", err)
	}
	result.Output = buf.String()

	rec, err := h.store.WriteTrace(ctx, merged, store.Meta{Label: scenario.Name, Inputs: inputs, Steps: steps})
	if err != nil {
		return fmt.Errorf("failed to archive merged trace: %w", err)
	}
	result.Digest = rec.Digest

	if _, _, err := h.store.ReadTrace(ctx, rec.ID); err != nil {
		result.AddError(fmt.Sprintf("archive round trip: %v", err))
	}
	return nil
}

func (h *Harness) load(loader *trace.Loader, in Input) (*trace.Loaded, error) {
	if in.VCD != "" {
		return loader.Load(strings.NewReader(in.VCD), in.Name)
	}
	f, err := os.Open(in.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return loader.Load(f, in.Name)
}

func expectsMergeError(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertMergeError {
			return true
		}
	}
	return false
}
