package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"traces", "signals", "events"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s.db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	s.Close()

	if _, err := Open(path); err == nil {
		t.Error("expected error for newer schema version, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

// Pragma tests

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.expected); err != nil {
			t.Error(err)
		}
	}
}

// Schema tests

func TestSchema_Columns(t *testing.T) {
	s := createTestStore(t)

	expected := map[string][]string{
		"traces": {
			"id", "seq", "label", "digest", "timescale_magnitude",
			"timescale_unit", "reset_end", "inputs", "steps",
		},
		"signals": {"trace_id", "local_id", "name", "source"},
		"events":  {"trace_id", "tick", "ord", "signal_id", "value"},
	}

	for table, cols := range expected {
		columns := getTableColumns(t, s.db, table)
		for _, col := range cols {
			if !contains(columns, col) {
				t.Errorf("%s table missing column %q", table, col)
			}
		}
	}

	if !contains(getTableIndexes(t, s.db, "traces"), "idx_traces_digest") {
		t.Error("traces table missing index idx_traces_digest")
	}
}

// Constraint tests

func TestConstraint_EventValueIsBit(t *testing.T) {
	s := createTestStore(t)
	insertTestTrace(t, s.db, "t1")

	_, err := s.db.Exec(`INSERT INTO events (trace_id, tick, ord, signal_id, value) VALUES ('t1', 0, 0, 0, 2)`)
	if err == nil {
		t.Error("expected CHECK violation for value 2")
	}
}

func TestConstraint_EventReferencesSignal(t *testing.T) {
	s := createTestStore(t)
	insertTestTrace(t, s.db, "t1")

	_, err := s.db.Exec(`INSERT INTO events (trace_id, tick, ord, signal_id, value) VALUES ('t1', 0, 0, 7, 1)`)
	if err == nil {
		t.Error("expected foreign key violation for unknown signal")
	}
}

func TestConstraint_UniqueSeq(t *testing.T) {
	s := createTestStore(t)
	insertTestTrace(t, s.db, "t1")

	_, err := s.db.Exec(`
		INSERT INTO traces (id, seq, label, digest, timescale_magnitude, timescale_unit, reset_end, inputs, steps)
		VALUES ('t2', 1, 'x', 'd', 1, 'ns', 0, '[]', '[]')
	`)
	if err == nil {
		t.Error("expected UNIQUE violation for duplicate seq")
	}
}

func TestConstraint_CascadeDelete(t *testing.T) {
	s := createTestStore(t)
	insertTestTrace(t, s.db, "t1")
	if _, err := s.db.Exec(`INSERT INTO events (trace_id, tick, ord, signal_id, value) VALUES ('t1', 3, 0, 0, 1)`); err != nil {
		t.Fatalf("insert event: %v", err)
	}

	if _, err := s.db.Exec(`DELETE FROM traces WHERE id = 't1'`); err != nil {
		t.Fatalf("delete trace: %v", err)
	}

	for _, table := range []string{"signals", "events"} {
		var count int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if count != 0 {
			t.Errorf("%s: %d rows left after cascade", table, count)
		}
	}
}

// insertTestTrace inserts a trace row with seq 1 and one signal.
func insertTestTrace(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO traces (id, seq, label, digest, timescale_magnitude, timescale_unit, reset_end, inputs, steps)
		VALUES (?, 1, 'test', 'digest', 1, 'ns', 0, '[]', '[]')
	`, id)
	if err != nil {
		t.Fatalf("insert trace: %v", err)
	}
	_, err = db.Exec(`INSERT INTO signals (trace_id, local_id, name, source) VALUES (?, 0, 'clk', '!')`, id)
	if err != nil {
		t.Fatalf("insert signal: %v", err)
	}
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
