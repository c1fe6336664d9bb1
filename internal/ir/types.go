package ir

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
)

// Timescale is the tick unit of a trace, e.g. {10, "ps"}.
// Traces can only be merged when both fields are equal.
type Timescale struct {
	Magnitude uint32 `json:"magnitude"`
	Unit      string `json:"unit"`
}

func (t Timescale) String() string {
	return fmt.Sprintf("%d%s", t.Magnitude, t.Unit)
}

// Signal is a collected variable: its dot-joined scope path and the
// identifier the source file used for it.
type Signal struct {
	Name   string `json:"name"`
	Source string `json:"source,omitempty"`
}

// Leaf returns the last segment of the qualified name.
func (s Signal) Leaf() string {
	if i := strings.LastIndexByte(s.Name, '.'); i >= 0 {
		return s.Name[i+1:]
	}
	return s.Name
}

// Change is one scalar value change of a local signal.
type Change struct {
	ID    uint32 `json:"id"`
	Value bool   `json:"value"`
}

// Trace is one loaded (or merged) waveform capture.
type Trace struct {
	// Name labels the trace in logs and errors, usually the input path.
	Name string

	Timescale Timescale

	// Signals is indexed by local signal id.
	Signals []Signal

	// Events maps ticks to the changes observed at that tick.
	Events *EventLog

	// ResetEnd is the last tick at which the reset was seen inactive,
	// 0 if never.
	ResetEnd uint64

	// Seeded is set once an all-low frame has been synthesized at tick 0.
	Seeded bool

	// Displaced holds the real tick-0 changes the synthesized frame
	// replaced. They are restored when this trace is absorbed by another.
	Displaced []Change
}

// NewTrace returns an empty trace.
func NewTrace(name string, ts Timescale) *Trace {
	return &Trace{
		Name:      name,
		Timescale: ts,
		Events:    NewEventLog(),
	}
}

// AddSignal appends a signal and returns its local id.
func (t *Trace) AddSignal(s Signal) (uint32, error) {
	id, err := safecast.Conv[uint32](len(t.Signals))
	if err != nil {
		return 0, fmt.Errorf("trace %s: too many signals: %w", t.Name, err)
	}
	t.Signals = append(t.Signals, s)
	return id, nil
}

// Names returns the qualified signal names in id order.
func (t *Trace) Names() []string {
	names := make([]string, len(t.Signals))
	for i, s := range t.Signals {
		names[i] = s.Name
	}
	return names
}

// Lookup returns the local id of the signal with the given qualified name.
func (t *Trace) Lookup(name string) (uint32, bool) {
	for i, s := range t.Signals {
		if s.Name == name {
			return uint32(i), true
		}
	}
	return 0, false
}

// Check verifies that every change references a declared signal.
func (t *Trace) Check() error {
	n := uint64(len(t.Signals))
	var err error
	t.Events.Ascend(func(f *Frame) bool {
		for _, c := range f.Changes {
			if uint64(c.ID) >= n {
				err = fmt.Errorf("trace %s: tick %d references signal %d, only %d declared", t.Name, f.Tick, c.ID, n)
				return false
			}
		}
		return true
	})
	if err != nil {
		return err
	}
	for _, c := range t.Displaced {
		if uint64(c.ID) >= n {
			return fmt.Errorf("trace %s: displaced change references signal %d, only %d declared", t.Name, c.ID, n)
		}
	}
	return nil
}
