package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainTrace prefixes trace digests. The version suffix allows changing
// the snapshot layout later.
const DomainTrace = "vcdsync/trace/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Snapshot returns the canonical form of a trace: timescale, ordered signal
// names and ordered [tick, id, value] events. With leafNames set, signal
// names are reduced to their last segment.
func Snapshot(t *Trace, leafNames bool) map[string]any {
	names := make([]any, len(t.Signals))
	for i, s := range t.Signals {
		if leafNames {
			names[i] = s.Leaf()
		} else {
			names[i] = s.Name
		}
	}

	events := make([]any, 0, t.Events.Count())
	t.Events.Ascend(func(f *Frame) bool {
		for _, c := range f.Changes {
			events = append(events, []any{f.Tick, c.ID, c.Value})
		}
		return true
	})

	return map[string]any{
		"timescale": t.Timescale.String(),
		"signals":   names,
		"events":    events,
	}
}

// TraceDigest is the content hash of a trace's snapshot.
func TraceDigest(t *Trace) (string, error) {
	return digest(Snapshot(t, false))
}

// FlatTraceDigest is TraceDigest with signal names reduced to leaves, the
// form a trace takes after being written and read back.
func FlatTraceDigest(t *Trace) (string, error) {
	return digest(Snapshot(t, true))
}

func digest(snapshot map[string]any) (string, error) {
	canonical, err := MarshalCanonical(snapshot)
	if err != nil {
		return "", fmt.Errorf("trace digest: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}
