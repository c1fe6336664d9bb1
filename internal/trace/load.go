package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/roach88/vcdsync/internal/ir"
	"github.com/roach88/vcdsync/internal/vcd"
)

// Loader reads VCD inputs into traces, synchronizing on Reset.
type Loader struct {
	// Reset is the dotted path of the active-low reset, e.g. "tb.dut.rst_n".
	// A single-segment name also matches the first variable with that
	// reference anywhere in the scope tree.
	Reset string

	// Logger receives progress messages. Nil discards them.
	Logger *slog.Logger
}

// Loaded is a trace together with what was learned while loading it.
type Loaded struct {
	Trace *ir.Trace

	// ResetSignal is the qualified name the reset path resolved to.
	ResetSignal string

	// Edges lists every observed value of the reset signal.
	Edges []Edge

	// Dropped counts value changes on identifiers absent from the header.
	Dropped int
}

// LoadFile loads the trace stored at path.
func (l *Loader) LoadFile(path string) (*Loaded, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return l.Load(bufio.NewReader(f), path)
}

// Load reads one VCD stream. name labels the trace in errors and logs.
func (l *Loader) Load(r io.Reader, name string) (*Loaded, error) {
	logger := l.logger()
	logger.Info("loading trace", "input", name)

	p := vcd.NewParser(r)
	header, err := p.ParseHeader()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if header.Timescale == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrNoTimescale)
	}

	resetVar, err := l.resolveReset(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	tr := ir.NewTrace(name, ir.Timescale{
		Magnitude: header.Timescale.Magnitude,
		Unit:      string(header.Timescale.Unit),
	})

	// Source identifier to local ids. Several declarations may share one
	// identifier (aliases); each of them receives the change.
	ids := make(map[vcd.IDCode][]uint32)
	resetName := ""
	for _, s := range CollectSignals(header.Items) {
		id, err := tr.AddSignal(s)
		if err != nil {
			return nil, err
		}
		code := vcd.IDCode(s.Source)
		ids[code] = append(ids[code], id)
		if resetName == "" && code == resetVar.Code {
			resetName = s.Name
		}
	}

	detector := NewResetDetector(resetVar.Code)
	loaded := &Loaded{Trace: tr, ResetSignal: resetName}

	var now uint64
	for {
		cmd, err := p.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		switch cmd.Kind {
		case vcd.CommandTimestamp:
			now = cmd.Time
		case vcd.CommandChangeScalar:
			targets, ok := ids[cmd.Code]
			if !ok {
				loaded.Dropped++
				continue
			}
			for _, id := range targets {
				tr.Events.Append(now, ir.Change{ID: id, Value: cmd.Value})
			}
			detector.Observe(now, cmd.Code, cmd.Value)
		}
	}

	tr.ResetEnd = detector.End()
	loaded.Edges = detector.Edges()

	logger.Info("trace loaded",
		"input", name,
		"timescale", tr.Timescale.String(),
		"signals", len(tr.Signals),
		"ticks", tr.Events.Len(),
		"reset", resetName,
		"reset_end", tr.ResetEnd,
	)
	if loaded.Dropped > 0 {
		logger.Warn("dropped changes on undeclared identifiers", "input", name, "count", loaded.Dropped)
	}

	return loaded, nil
}

func (l *Loader) resolveReset(h *vcd.Header) (*vcd.Var, error) {
	if l.Reset == "" {
		return nil, fmt.Errorf("%w: no reset signal given", ErrResetNotFound)
	}

	path := strings.Split(l.Reset, ".")
	if v, ok := h.FindVar(path); ok {
		return v, nil
	}
	if len(path) == 1 {
		if v, ok := h.FindLeaf(l.Reset); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrResetNotFound, l.Reset)
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l.Logger
}
