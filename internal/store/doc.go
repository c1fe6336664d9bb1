// Package store provides SQLite-backed archival of merged traces.
//
// Each archived trace keeps its timescale, reset-end tick, ordered signal
// table, every (tick, signal, value) change and the merge steps that
// produced it. Traces are identified by a UUIDv7 and ordered by seq, a
// logical clock assigned on write.
//
// # Determinism
//
//   - Listing orders by seq ASC, id ASC COLLATE BINARY
//   - Events are read back in (tick, ord) order, the order they were logged
//   - The trace digest (ir.TraceDigest) is stored on write and verified on
//     read, so a replayed trace is exactly the one that was archived
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
