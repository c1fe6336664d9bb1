package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/vcdsync/internal/ir"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestTrace creates a merged-looking trace: three signals, a tick-0
// frame and a reset release at tick 40.
func createTestTrace(t *testing.T) *ir.Trace {
	t.Helper()
	tr := ir.NewTrace("merged", ir.Timescale{Magnitude: 10, Unit: "ps"})
	for _, s := range []ir.Signal{
		{Name: "a.rst_n", Source: "!"},
		{Name: "b.rst_n", Source: "!"},
		{Name: "b.clk", Source: "\""},
	} {
		if _, err := tr.AddSignal(s); err != nil {
			t.Fatalf("AddSignal() failed: %v", err)
		}
	}
	tr.Events.Append(0, ir.Change{ID: 0}, ir.Change{ID: 1}, ir.Change{ID: 2})
	tr.Events.Append(25, ir.Change{ID: 2, Value: true})
	tr.Events.Append(40, ir.Change{ID: 1, Value: true}, ir.Change{ID: 0, Value: true})
	tr.Events.Append(1<<40, ir.Change{ID: 2, Value: false})
	tr.ResetEnd = 40
	return tr
}
