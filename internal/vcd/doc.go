// Package vcd reads and writes Value Change Dump files (IEEE 1364 §18).
//
// Only the subset needed to merge digital traces is supported:
//
//   - Header: $date, $version, $comment, $timescale, $scope/$upscope, $var
//     and $enddefinitions. Unknown header keywords are skipped up to $end.
//   - Body: #<tick> timestamps and scalar 0/1 value changes. The keywords
//     $dumpvars, $dumpall, $dumpon and $dumpoff are transparent; their value
//     changes are reported like any other.
//
// Vector (b), real (r) and string (s) changes as well as x/z scalars are not
// boolean and are skipped silently, the same way as any malformed command.
// A malformed command never aborts the command stream.
//
// The Writer emits the same subset: one timescale, flat module scopes of
// 1-bit wires, and a timestamp-ordered list of scalar changes.
package vcd
