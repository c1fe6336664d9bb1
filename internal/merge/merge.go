// Package merge aligns traces on their reset-end tick and folds them into
// one trace.
//
// The trace whose reset ended later is the receiver. The other trace, the
// donor, is shifted forward by the difference of the two reset-end ticks so
// that both resets end at the same instant in the merged timeline. Donor
// signals are appended after the receiver's, keeping their order; a donor
// name already present in the receiver gets a numeric suffix ("clk" becomes
// "clk_2").
//
// After every merge, tick 0 holds exactly one low value per signal so that
// every signal has a defined initial value in the output.
package merge

import (
	"strconv"

	"github.com/roach88/vcdsync/internal/ir"
)

// Rename records a donor signal that was renamed to avoid a collision.
type Rename struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Step describes one merge.
type Step struct {
	Receiver string   `json:"receiver"`
	Donor    string   `json:"donor"`
	Skew     uint64   `json:"skew"`
	IDOffset uint32   `json:"id_offset"`
	Signals  int      `json:"signals"` // donor signals appended
	Renames  []Rename `json:"renames,omitempty"`
}

// Skew returns |a − b|.
func Skew(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// Merge folds donor into receiver. receiver must be the trace with the
// greater (or equal) ResetEnd. The donor must not be used afterwards: its
// event log is consumed.
//
// The combined signal count must fit a uint32; Validate checks this before
// any merge runs.
func Merge(receiver, donor *ir.Trace) Step {
	skew := Skew(receiver.ResetEnd, donor.ResetEnd)
	offset := uint32(len(receiver.Signals))

	step := Step{
		Receiver: receiver.Name,
		Donor:    donor.Name,
		Skew:     skew,
		IDOffset: offset,
		Signals:  len(donor.Signals),
	}

	// A receiver that went through a merge carries a synthesized tick-0
	// frame; its real tick-0 changes are already in Displaced.
	if receiver.Seeded {
		receiver.Events.Delete(0)
	}

	// Same for the donor, but its real tick-0 changes go back in the log so
	// they are shifted like everything else. The frame is rebuilt below.
	if donor.Seeded {
		donor.Events.Delete(0)
		if len(donor.Displaced) > 0 {
			donor.Events.Append(0, donor.Displaced...)
		}
	}

	taken := make(map[string]struct{}, len(receiver.Signals)+len(donor.Signals))
	for _, s := range receiver.Signals {
		taken[s.Name] = struct{}{}
	}
	for _, s := range donor.Signals {
		name := uniqueName(s.Name, taken)
		if name != s.Name {
			step.Renames = append(step.Renames, Rename{From: s.Name, To: name})
		}
		taken[name] = struct{}{}
		receiver.Signals = append(receiver.Signals, ir.Signal{Name: name, Source: s.Source})
	}

	donor.Events.Ascend(func(f *ir.Frame) bool {
		shifted := make([]ir.Change, len(f.Changes))
		for i, c := range f.Changes {
			shifted[i] = ir.Change{ID: c.ID + offset, Value: c.Value}
		}
		receiver.Events.Append(f.Tick+skew, shifted...)
		return true
	})

	seed(receiver)
	return step
}

// seed installs the all-low frame at tick 0. Whatever the frame replaces
// is kept in Displaced.
func seed(t *ir.Trace) {
	frame := make([]ir.Change, len(t.Signals))
	for i := range t.Signals {
		frame[i] = ir.Change{ID: uint32(i), Value: false}
	}

	prev := t.Events.Replace(0, frame)
	t.Displaced = append(t.Displaced, prev...)
	t.Seeded = true
}

// uniqueName returns name, or name_2, name_3, ... whichever is free first.
func uniqueName(name string, taken map[string]struct{}) string {
	if _, ok := taken[name]; !ok {
		return name
	}
	for n := 2; ; n++ {
		candidate := name + "_" + strconv.Itoa(n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
