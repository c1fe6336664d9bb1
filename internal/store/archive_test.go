package store

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/roach88/vcdsync/internal/ir"
	"github.com/roach88/vcdsync/internal/merge"
)

func TestWriteTrace_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	tr := createTestTrace(t)

	steps := []merge.Step{{
		Receiver: "a.vcd",
		Donor:    "b.vcd",
		Skew:     15,
		IDOffset: 1,
		Signals:  2,
		Renames:  []merge.Rename{{From: "rst_n", To: "rst_n_2"}},
	}}
	rec, err := s.WriteTrace(ctx, tr, Meta{Inputs: []string{"a.vcd", "b.vcd"}, Steps: steps})
	if err != nil {
		t.Fatalf("WriteTrace() failed: %v", err)
	}
	if rec.Seq != 1 {
		t.Errorf("Seq = %d, want 1", rec.Seq)
	}
	if rec.Label != "merged" {
		t.Errorf("Label = %q, want trace name", rec.Label)
	}
	if rec.Signals != 3 || rec.Events != 7 {
		t.Errorf("counts = %d signals, %d events; want 3, 7", rec.Signals, rec.Events)
	}

	got, gotRec, err := s.ReadTrace(ctx, rec.ID)
	if err != nil {
		t.Fatalf("ReadTrace() failed: %v", err)
	}
	if !reflect.DeepEqual(gotRec, rec) {
		t.Errorf("record mismatch:\n got %+v\nwant %+v", gotRec, rec)
	}

	wantDigest, _ := ir.TraceDigest(tr)
	gotDigest, _ := ir.TraceDigest(got)
	if gotDigest != wantDigest {
		t.Errorf("digest = %s, want %s", gotDigest, wantDigest)
	}
	if got.ResetEnd != 40 {
		t.Errorf("ResetEnd = %d, want 40", got.ResetEnd)
	}
	if !reflect.DeepEqual(got.Signals, tr.Signals) {
		t.Errorf("signals = %v, want %v", got.Signals, tr.Signals)
	}

	// change order inside a tick survives
	changes, _ := got.Events.At(40)
	want := []ir.Change{{ID: 1, Value: true}, {ID: 0, Value: true}}
	if !reflect.DeepEqual(changes, want) {
		t.Errorf("tick 40 = %v, want %v", changes, want)
	}
}

func TestWriteTrace_AssignsIncreasingSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		rec, err := s.WriteTrace(ctx, createTestTrace(t), Meta{Label: "run"})
		if err != nil {
			t.Fatalf("WriteTrace() #%d failed: %v", i, err)
		}
		if rec.Seq != int64(i+1) {
			t.Errorf("write #%d: Seq = %d", i, rec.Seq)
		}
		ids = append(ids, rec.ID)
	}

	records, err := s.ListTraces(ctx)
	if err != nil {
		t.Fatalf("ListTraces() failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("ListTraces() = %d records, want 3", len(records))
	}
	for i, rec := range records {
		if rec.ID != ids[i] {
			t.Errorf("record %d = %s, want %s", i, rec.ID, ids[i])
		}
		if rec.Label != "run" {
			t.Errorf("record %d label = %q", i, rec.Label)
		}
	}
}

func TestWriteTrace_RejectsInvalidTrace(t *testing.T) {
	s := createTestStore(t)
	tr := createTestTrace(t)
	tr.Events.Append(5, ir.Change{ID: 99})

	if _, err := s.WriteTrace(context.Background(), tr, Meta{}); err == nil {
		t.Fatal("expected error for out-of-range signal id")
	}

	records, _ := s.ListTraces(context.Background())
	if len(records) != 0 {
		t.Errorf("invalid trace left %d records", len(records))
	}
}

func TestWriteTrace_RollsBackOnTickOverflow(t *testing.T) {
	s := createTestStore(t)
	tr := createTestTrace(t)
	tr.Events.Append(1<<63, ir.Change{ID: 0, Value: true})

	if _, err := s.WriteTrace(context.Background(), tr, Meta{}); err == nil {
		t.Fatal("expected error for tick beyond int64")
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM traces").Scan(&count); err != nil {
		t.Fatalf("count traces: %v", err)
	}
	if count != 0 {
		t.Errorf("failed write left %d trace rows", count)
	}
}

func TestListTraces_Empty(t *testing.T) {
	s := createTestStore(t)

	records, err := s.ListTraces(context.Background())
	if err != nil {
		t.Fatalf("ListTraces() failed: %v", err)
	}
	if records == nil {
		t.Error("ListTraces() returned nil, want empty slice")
	}
}

func TestReadTrace_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, _, err := s.ReadTrace(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadTrace() error = %v, want ErrNotFound", err)
	}
}

func TestReadTrace_DetectsTampering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec, err := s.WriteTrace(ctx, createTestTrace(t), Meta{})
	if err != nil {
		t.Fatalf("WriteTrace() failed: %v", err)
	}
	if _, err := s.db.Exec(`UPDATE events SET value = 1 - value WHERE trace_id = ? AND tick = 25`, rec.ID); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	_, _, err = s.ReadTrace(ctx, rec.ID)
	if !errors.Is(err, ErrDigestMismatch) {
		t.Errorf("ReadTrace() error = %v, want ErrDigestMismatch", err)
	}
}

func TestResolveID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	insertTestTrace(t, s.db, "0192aaaa-0000-7000-8000-000000000001")
	_, err := s.db.Exec(`
		INSERT INTO traces (id, seq, label, digest, timescale_magnitude, timescale_unit, reset_end, inputs, steps)
		VALUES ('0192bbbb-0000-7000-8000-000000000002', 2, 'x', 'd', 1, 'ns', 0, '[]', '[]')
	`)
	if err != nil {
		t.Fatalf("insert trace: %v", err)
	}

	tests := []struct {
		prefix  string
		want    string
		wantErr error
	}{
		{"0192a", "0192aaaa-0000-7000-8000-000000000001", nil},
		{"0192bbbb-0000-7000-8000-000000000002", "0192bbbb-0000-7000-8000-000000000002", nil},
		{"0192", "", ErrAmbiguousID},
		{"ffff", "", ErrNotFound},
		{"", "", ErrNotFound},
		{"0192_", "", ErrNotFound},
	}
	for _, tt := range tests {
		got, err := s.ResolveID(ctx, tt.prefix)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ResolveID(%q) error = %v, want %v", tt.prefix, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("ResolveID(%q) failed: %v", tt.prefix, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveID(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestMarshalSteps_Canonical(t *testing.T) {
	got, err := marshalSteps([]merge.Step{{Receiver: "a", Donor: "b", Skew: 3, IDOffset: 2, Signals: 1}})
	if err != nil {
		t.Fatalf("marshalSteps() failed: %v", err)
	}
	want := `[{"donor":"b","id_offset":2,"receiver":"a","renames":[],"signals":1,"skew":3}]`
	if got != want {
		t.Errorf("marshalSteps() = %s, want %s", got, want)
	}

	steps, err := unmarshalSteps(got)
	if err != nil {
		t.Fatalf("unmarshalSteps() failed: %v", err)
	}
	if steps[0].Renames != nil || steps[0].Skew != 3 || !strings.EqualFold(steps[0].Donor, "b") {
		t.Errorf("unmarshalSteps() = %+v", steps)
	}
}
