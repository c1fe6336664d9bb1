// Package trace turns VCD files into ir.Trace values and back.
//
// Loading is a single pass: the header's scope tree is flattened into the
// signal schema (CollectSignals), the reset signal is resolved by its dotted
// path, and every scalar change is recorded in the trace's event log while a
// ResetDetector watches the reset identifier.
//
// The reset is assumed active-low: the trace's ResetEnd is the last tick at
// which the reset was observed at logic 1. If the reset toggles back to 0
// and up again, only the final rising observation counts.
//
// Writing flattens every signal to its leaf name under a single module and
// replays the event log in tick order.
package trace
