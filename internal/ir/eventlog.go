package ir

import (
	"github.com/google/btree"
)

// btreeDegree is the fan-out of the event log's B-tree.
const btreeDegree = 32

// Frame is the list of changes recorded at one tick.
type Frame struct {
	Tick    uint64
	Changes []Change
}

// EventLog is an ordered map from tick to changes.
// Ticks are unique keys; iteration is always in ascending tick order.
type EventLog struct {
	tree  *btree.BTreeG[*Frame]
	count int
}

// NewEventLog returns an empty log.
func NewEventLog() *EventLog {
	return &EventLog{
		tree: btree.NewG(btreeDegree, func(a, b *Frame) bool {
			return a.Tick < b.Tick
		}),
	}
}

// Append adds changes at tick, after any changes already recorded there.
func (l *EventLog) Append(tick uint64, changes ...Change) {
	if f, ok := l.tree.Get(&Frame{Tick: tick}); ok {
		f.Changes = append(f.Changes, changes...)
	} else {
		l.tree.ReplaceOrInsert(&Frame{Tick: tick, Changes: append([]Change(nil), changes...)})
	}
	l.count += len(changes)
}

// Replace sets the changes at tick, returning whatever was there before.
func (l *EventLog) Replace(tick uint64, changes []Change) []Change {
	prev, ok := l.tree.ReplaceOrInsert(&Frame{Tick: tick, Changes: changes})
	l.count += len(changes)
	if !ok {
		return nil
	}
	l.count -= len(prev.Changes)
	return prev.Changes
}

// Delete removes the frame at tick and returns its changes.
func (l *EventLog) Delete(tick uint64) []Change {
	prev, ok := l.tree.Delete(&Frame{Tick: tick})
	if !ok {
		return nil
	}
	l.count -= len(prev.Changes)
	return prev.Changes
}

// At returns the changes recorded at tick.
func (l *EventLog) At(tick uint64) ([]Change, bool) {
	f, ok := l.tree.Get(&Frame{Tick: tick})
	if !ok {
		return nil, false
	}
	return f.Changes, true
}

// Ascend calls fn for every frame in tick order until fn returns false.
// fn must not modify the log.
func (l *EventLog) Ascend(fn func(f *Frame) bool) {
	l.tree.Ascend(func(f *Frame) bool {
		return fn(f)
	})
}

// Frames returns a copy of all frames in tick order.
func (l *EventLog) Frames() []Frame {
	frames := make([]Frame, 0, l.tree.Len())
	l.tree.Ascend(func(f *Frame) bool {
		frames = append(frames, Frame{Tick: f.Tick, Changes: append([]Change(nil), f.Changes...)})
		return true
	})
	return frames
}

// Len returns the number of distinct ticks.
func (l *EventLog) Len() int {
	return l.tree.Len()
}

// Count returns the total number of changes.
func (l *EventLog) Count() int {
	return l.count
}

// Last returns the highest tick, or false when the log is empty.
func (l *EventLog) Last() (uint64, bool) {
	f, ok := l.tree.Max()
	if !ok {
		return 0, false
	}
	return f.Tick, true
}
