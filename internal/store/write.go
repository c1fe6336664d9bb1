package store

import (
	"context"
	"database/sql"
	"fmt"

	"fortio.org/safecast"
	"github.com/google/uuid"

	"github.com/roach88/vcdsync/internal/ir"
	"github.com/roach88/vcdsync/internal/merge"
)

// Meta describes how an archived trace came to be.
type Meta struct {
	Label  string       // defaults to the trace name
	Inputs []string     // input files in merge order
	Steps  []merge.Step // one per merge
}

// WriteTrace archives t in one transaction and returns its record. The
// trace is assigned a fresh UUIDv7 and the next seq.
func (s *Store) WriteTrace(ctx context.Context, t *ir.Trace, meta Meta) (Record, error) {
	if err := t.Check(); err != nil {
		return Record{}, fmt.Errorf("write trace: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Record{}, fmt.Errorf("write trace: generate id: %w", err)
	}

	digest, err := ir.TraceDigest(t)
	if err != nil {
		return Record{}, fmt.Errorf("write trace: %w", err)
	}
	inputsJSON, err := marshalInputs(meta.Inputs)
	if err != nil {
		return Record{}, fmt.Errorf("write trace: %w", err)
	}
	stepsJSON, err := marshalSteps(meta.Steps)
	if err != nil {
		return Record{}, fmt.Errorf("write trace: %w", err)
	}
	resetEnd, err := safecast.Conv[int64](t.ResetEnd)
	if err != nil {
		return Record{}, fmt.Errorf("write trace: reset end: %w", err)
	}

	inputs := meta.Inputs
	if inputs == nil {
		inputs = []string{}
	}
	steps := meta.Steps
	if steps == nil {
		steps = []merge.Step{}
	}

	label := meta.Label
	if label == "" {
		label = t.Name
	}

	rec := Record{
		ID:        id.String(),
		Label:     label,
		Digest:    digest,
		Timescale: t.Timescale,
		ResetEnd:  t.ResetEnd,
		Signals:   len(t.Signals),
		Events:    t.Events.Count(),
		Inputs:    inputs,
		Steps:     steps,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("write trace: begin: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM traces`).Scan(&rec.Seq); err != nil {
		return Record{}, fmt.Errorf("write trace: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO traces
		(id, seq, label, digest, timescale_magnitude, timescale_unit, reset_end, inputs, steps)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Seq,
		rec.Label,
		rec.Digest,
		t.Timescale.Magnitude,
		t.Timescale.Unit,
		resetEnd,
		inputsJSON,
		stepsJSON,
	)
	if err != nil {
		return Record{}, fmt.Errorf("write trace: %w", err)
	}

	if err := writeSignals(ctx, tx, rec.ID, t.Signals); err != nil {
		return Record{}, err
	}
	if err := writeEvents(ctx, tx, rec.ID, t.Events); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("write trace: commit: %w", err)
	}
	return rec, nil
}

func writeSignals(ctx context.Context, tx *sql.Tx, traceID string, signals []ir.Signal) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO signals (trace_id, local_id, name, source) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write signals: %w", err)
	}
	defer stmt.Close()

	for i, sig := range signals {
		if _, err := stmt.ExecContext(ctx, traceID, i, sig.Name, sig.Source); err != nil {
			return fmt.Errorf("write signal %s: %w", sig.Name, err)
		}
	}
	return nil
}

func writeEvents(ctx context.Context, tx *sql.Tx, traceID string, events *ir.EventLog) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (trace_id, tick, ord, signal_id, value) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	defer stmt.Close()

	var werr error
	events.Ascend(func(f *ir.Frame) bool {
		tick, err := safecast.Conv[int64](f.Tick)
		if err != nil {
			werr = fmt.Errorf("write events: tick %d: %w", f.Tick, err)
			return false
		}
		for ord, c := range f.Changes {
			value := 0
			if c.Value {
				value = 1
			}
			if _, err := stmt.ExecContext(ctx, traceID, tick, ord, c.ID, value); err != nil {
				werr = fmt.Errorf("write events: tick %d: %w", f.Tick, err)
				return false
			}
		}
		return true
	})
	return werr
}
