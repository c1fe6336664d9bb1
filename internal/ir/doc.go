// Package ir provides the in-memory trace model shared by the loader, the
// merger, the writer and the archive.
//
// This package contains the model only. All other internal packages import
// ir; ir imports nothing internal.
//
// Key constraints:
//   - Local signal ids are dense: Signals[i] has id i
//   - Every Change in the event log references a valid local id
//   - The event log is always iterated in ascending tick order
//   - Ticks are unsigned tick counts in the trace's timescale, never wall time
package ir
