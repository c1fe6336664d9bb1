package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/roach88/vcdsync/internal/ir"
	"github.com/roach88/vcdsync/internal/vcd"
)

// DefaultModule is the scope every signal is declared in.
const DefaultModule = "top"

// WriteOptions tune the emitted header.
type WriteOptions struct {
	Module  string // defaults to DefaultModule
	Date    string // optional $date
	Version string // optional $version
}

// Write emits t as VCD: timescale, one flat module of 1-bit wires named by
// their leaf segment in local-id order, then every frame in tick order.
func Write(w io.Writer, t *ir.Trace, opts WriteOptions) error {
	module := opts.Module
	if module == "" {
		module = DefaultModule
	}

	vw := vcd.NewWriter(w)

	if opts.Date != "" {
		if err := vw.Date(opts.Date); err != nil {
			return fmt.Errorf("write date: %w", err)
		}
	}
	if opts.Version != "" {
		if err := vw.Version(opts.Version); err != nil {
			return fmt.Errorf("write version: %w", err)
		}
	}

	ts := vcd.Timescale{Magnitude: t.Timescale.Magnitude, Unit: vcd.TimescaleUnit(t.Timescale.Unit)}
	if err := vw.Timescale(ts); err != nil {
		return fmt.Errorf("write timescale: %w", err)
	}
	if err := vw.AddModule(module); err != nil {
		return fmt.Errorf("write scope: %w", err)
	}

	// Declaration order is local-id order, so codes[id] is valid for every
	// change in the log.
	codes := make([]vcd.IDCode, len(t.Signals))
	for i, s := range t.Signals {
		code, err := vw.AddWire(1, s.Leaf())
		if err != nil {
			return fmt.Errorf("declare %s: %w", s.Name, err)
		}
		codes[i] = code
	}

	if err := vw.Upscope(); err != nil {
		return fmt.Errorf("write upscope: %w", err)
	}
	if err := vw.EndDefinitions(); err != nil {
		return fmt.Errorf("write enddefinitions: %w", err)
	}

	var werr error
	t.Events.Ascend(func(f *ir.Frame) bool {
		if werr = vw.Timestamp(f.Tick); werr != nil {
			return false
		}
		for _, c := range f.Changes {
			if int(c.ID) >= len(codes) {
				werr = fmt.Errorf("tick %d: unknown signal id %d", f.Tick, c.ID)
				return false
			}
			if werr = vw.ChangeScalar(codes[c.ID], c.Value); werr != nil {
				return false
			}
		}
		return true
	})
	if werr != nil {
		return fmt.Errorf("write changes: %w", werr)
	}

	return vw.Flush()
}

// WriteFile writes t to path. The file is written under a temporary name in
// the same directory and renamed into place, so a failed write never leaves
// a truncated output behind.
func WriteFile(path string, t *ir.Trace, opts WriteOptions) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".vcdsync-*.vcd")
	if err != nil {
		return fmt.Errorf("create output %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("create output %s: %w", path, err)
	}
	if err := Write(tmp, t, opts); err != nil {
		tmp.Close()
		return fmt.Errorf("write output %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("create output %s: %w", path, err)
	}
	return nil
}
