package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// --- Run operations ---

// BeginRun records the start of a run and returns it with a fresh ID.
func (s *Store) BeginRun(kind string) (*Run, error) {
	r := &Run{ID: uuid.NewString(), Kind: kind, StartedAt: time.Now()}
	_, err := s.db.Exec(
		"INSERT INTO runs (id, kind, started_at) VALUES (?, ?, ?)",
		r.ID, r.Kind, r.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return r, nil
}

// FinishRun stamps the run's finish time and counters.
func (s *Store) FinishRun(r *Run) error {
	now := time.Now()
	r.FinishedAt = &now
	_, err := s.db.Exec(
		"UPDATE runs SET finished_at = ?, documents = ?, markers = ?, failures = ? WHERE id = ?",
		now, r.Documents, r.Markers, r.Failures, r.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]*Run, error) {
	rows, err := s.db.Query(
		`SELECT id, kind, started_at, finished_at, documents, markers, failures
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()
	var runs []*Run
	for rows.Next() {
		r := &Run{}
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Kind, &r.StartedAt, &finished, &r.Documents, &r.Markers, &r.Failures); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// --- Document operations ---

// RecordDocument inserts or replaces the ledger entry for a derived document.
func (s *Store) RecordDocument(d *Document) error {
	_, err := s.db.Exec(
		`INSERT INTO documents (path, source, kind, status, written_at, run_id)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   source = excluded.source, kind = excluded.kind, status = excluded.status,
		   written_at = excluded.written_at, run_id = excluded.run_id`,
		d.Path, d.Source, d.Kind, d.Status, d.WrittenAt, d.RunID,
	)
	if err != nil {
		return fmt.Errorf("record document: %w", err)
	}
	return nil
}

func (s *Store) DocumentByPath(path string) (*Document, error) {
	d := &Document{}
	err := s.db.QueryRow(
		"SELECT path, source, kind, status, written_at, run_id FROM documents WHERE path = ?", path,
	).Scan(&d.Path, &d.Source, &d.Kind, &d.Status, &d.WrittenAt, &d.RunID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("document by path: %w", err)
	}
	return d, nil
}

// DocumentCounts returns the number of ledger documents per status.
func (s *Store) DocumentCounts() (map[string]int, error) {
	rows, err := s.db.Query("SELECT status, COUNT(*) FROM documents GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("document counts: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// --- Marker operations ---

// ReplaceMarkers transactionally replaces the whole marker table.
func (s *Store) ReplaceMarkers(markers []MarkerRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM markers"); err != nil {
		return fmt.Errorf("clear markers: %w", err)
	}
	stmt, err := tx.Prepare("INSERT INTO markers (marker, document, kind) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare marker insert: %w", err)
	}
	defer stmt.Close()
	for _, m := range markers {
		if _, err := stmt.Exec(m.Marker, m.Document, m.Kind); err != nil {
			return fmt.Errorf("insert marker: %w", err)
		}
	}
	return tx.Commit()
}

// MarkersByPrefix returns markers starting with prefix, ordered by marker
// then document. The caret is optional in prefix.
func (s *Store) MarkersByPrefix(prefix string) ([]MarkerRow, error) {
	if prefix != "" && prefix[0] != '^' {
		prefix = "^" + prefix
	}
	rows, err := s.db.Query(
		`SELECT marker, document, kind FROM markers
		 WHERE substr(marker, 1, ?) = ? ORDER BY marker, document`,
		len(prefix), prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("markers by prefix: %w", err)
	}
	defer rows.Close()
	var out []MarkerRow
	for rows.Next() {
		var m MarkerRow
		if err := rows.Scan(&m.Marker, &m.Document, &m.Kind); err != nil {
			return nil, fmt.Errorf("scan marker: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
