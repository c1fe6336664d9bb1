package trace

import "github.com/roach88/vcdsync/internal/vcd"

// Edge is one observed value of the reset signal.
type Edge struct {
	Tick  uint64 `json:"tick"`
	Value bool   `json:"value"`
}

// ResetDetector finds the end of an active-low reset.
//
// Every event on Code is recorded. Each observation at logic 1 moves the
// end of reset forward, so after the whole stream End reports the last
// time the reset was seen inactive.
type ResetDetector struct {
	Code  vcd.IDCode
	end   uint64
	edges []Edge
}

// NewResetDetector watches the given identifier.
func NewResetDetector(code vcd.IDCode) *ResetDetector {
	return &ResetDetector{Code: code}
}

// Observe feeds one scalar change.
func (d *ResetDetector) Observe(tick uint64, code vcd.IDCode, value bool) {
	if code != d.Code {
		return
	}
	d.edges = append(d.edges, Edge{Tick: tick, Value: value})
	if value {
		d.end = tick
	}
}

// End returns the last tick the reset was observed inactive, or 0.
func (d *ResetDetector) End() uint64 {
	return d.end
}

// Edges returns every observed reset event in stream order.
func (d *ResetDetector) Edges() []Edge {
	return d.edges
}
