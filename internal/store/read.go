package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"fortio.org/safecast"

	"github.com/roach88/vcdsync/internal/ir"
	"github.com/roach88/vcdsync/internal/merge"
)

// Lookup errors.
var (
	ErrNotFound       = errors.New("trace not found")
	ErrAmbiguousID    = errors.New("trace id prefix is ambiguous")
	ErrDigestMismatch = errors.New("archived trace does not match its digest")
)

// Record is the summary of one archived trace.
type Record struct {
	ID        string       `json:"id"`
	Seq       int64        `json:"seq"`
	Label     string       `json:"label"`
	Digest    string       `json:"digest"`
	Timescale ir.Timescale `json:"timescale"`
	ResetEnd  uint64       `json:"reset_end"`
	Signals   int          `json:"signals"`
	Events    int          `json:"events"`
	Inputs    []string     `json:"inputs"`
	Steps     []merge.Step `json:"steps"`
}

const recordColumns = `
	t.id, t.seq, t.label, t.digest, t.timescale_magnitude, t.timescale_unit, t.reset_end, t.inputs, t.steps,
	(SELECT COUNT(*) FROM signals s WHERE s.trace_id = t.id),
	(SELECT COUNT(*) FROM events e WHERE e.trace_id = t.id)
`

// ListTraces returns every archived trace, oldest first.
// Ordered by seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the archive is empty.
func (s *Store) ListTraces(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM traces t
		ORDER BY t.seq ASC, t.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query traces: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate traces: %w", err)
	}
	return records, nil
}

// ResolveID expands a unique id prefix to the full trace id.
func (s *Store) ResolveID(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("%w: empty id", ErrNotFound)
	}

	// The prefix is user input; match it literally.
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM traces
		WHERE id LIKE ? ESCAPE '\'
		ORDER BY id COLLATE BINARY ASC
		LIMIT 2
	`, escaped+"%")
	if err != nil {
		return "", fmt.Errorf("resolve id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("resolve id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("resolve id: %w", err)
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		for _, id := range ids {
			if id == prefix {
				return id, nil
			}
		}
		return "", fmt.Errorf("%w: %s", ErrAmbiguousID, prefix)
	}
}

// ReadTrace loads the archived trace with the given id and verifies it
// against the stored digest.
func (s *Store) ReadTrace(ctx context.Context, id string) (*ir.Trace, Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM traces t
		WHERE t.id = ?
	`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, Record{}, err
	}

	t := ir.NewTrace(rec.Label, rec.Timescale)
	t.ResetEnd = rec.ResetEnd

	if err := s.readSignals(ctx, t, id); err != nil {
		return nil, Record{}, err
	}
	if err := s.readEvents(ctx, t, id); err != nil {
		return nil, Record{}, err
	}

	digest, err := ir.TraceDigest(t)
	if err != nil {
		return nil, Record{}, err
	}
	if digest != rec.Digest {
		return nil, Record{}, fmt.Errorf("%w: %s", ErrDigestMismatch, id)
	}
	return t, rec, nil
}

func (s *Store) readSignals(ctx context.Context, t *ir.Trace, id string) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, source FROM signals
		WHERE trace_id = ?
		ORDER BY local_id ASC
	`, id)
	if err != nil {
		return fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sig ir.Signal
		if err := rows.Scan(&sig.Name, &sig.Source); err != nil {
			return fmt.Errorf("scan signal: %w", err)
		}
		if _, err := t.AddSignal(sig); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate signals: %w", err)
	}
	return nil
}

func (s *Store) readEvents(ctx context.Context, t *ir.Trace, id string) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tick, signal_id, value FROM events
		WHERE trace_id = ?
		ORDER BY tick ASC, ord ASC
	`, id)
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tick     int64
			signalID int64
			value    int
		)
		if err := rows.Scan(&tick, &signalID, &value); err != nil {
			return fmt.Errorf("scan event: %w", err)
		}
		utick, err := safecast.Conv[uint64](tick)
		if err != nil {
			return fmt.Errorf("event tick %d: %w", tick, err)
		}
		sid, err := safecast.Conv[uint32](signalID)
		if err != nil {
			return fmt.Errorf("event signal %d: %w", signalID, err)
		}
		t.Events.Append(utick, ir.Change{ID: sid, Value: value == 1})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate events: %w", err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec        Record
		magnitude  int64
		resetEnd   int64
		inputsJSON string
		stepsJSON  string
	)
	err := row.Scan(
		&rec.ID,
		&rec.Seq,
		&rec.Label,
		&rec.Digest,
		&magnitude,
		&rec.Timescale.Unit,
		&resetEnd,
		&inputsJSON,
		&stepsJSON,
		&rec.Signals,
		&rec.Events,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, err
	}
	if err != nil {
		return Record{}, fmt.Errorf("scan trace: %w", err)
	}

	if rec.Timescale.Magnitude, err = safecast.Conv[uint32](magnitude); err != nil {
		return Record{}, fmt.Errorf("trace %s timescale: %w", rec.ID, err)
	}
	if rec.ResetEnd, err = safecast.Conv[uint64](resetEnd); err != nil {
		return Record{}, fmt.Errorf("trace %s reset end: %w", rec.ID, err)
	}
	if rec.Inputs, err = unmarshalInputs(inputsJSON); err != nil {
		return Record{}, err
	}
	if rec.Steps, err = unmarshalSteps(stepsJSON); err != nil {
		return Record{}, err
	}
	return rec, nil
}
