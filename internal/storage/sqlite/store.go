// Package sqlite persists the record snapshot between restarts and keeps the
// briefing audit log. The analytics core never writes records; ingestion
// replaces the snapshot wholesale.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"drishti/internal/domain"
	"drishti/internal/gateway"
)

// Store wraps the sqlite handle.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		region              TEXT NOT NULL DEFAULT '',
		date                TEXT NOT NULL DEFAULT '',
		age_0_5             INTEGER NOT NULL DEFAULT 0,
		age_5_17            INTEGER NOT NULL DEFAULT 0,
		age_18_greater      INTEGER NOT NULL DEFAULT 0,
		bio_age_5_17        INTEGER NOT NULL DEFAULT 0,
		bio_age_18_greater  INTEGER NOT NULL DEFAULT 0,
		demo_age_5_17       INTEGER NOT NULL DEFAULT 0,
		demo_age_18_greater INTEGER NOT NULL DEFAULT 0,
		total_updates       INTEGER NOT NULL DEFAULT 0,
		total_enrolment     INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_records_date ON records(date);
	CREATE INDEX IF NOT EXISTS idx_records_region ON records(region);

	CREATE TABLE IF NOT EXISTS briefing_audit (
		id            TEXT PRIMARY KEY,
		model         TEXT NOT NULL DEFAULT '',
		volume        REAL NOT NULL DEFAULT 0,
		confidence    REAL NOT NULL DEFAULT 0,
		scope_label   TEXT NOT NULL DEFAULT '',
		degraded      INTEGER NOT NULL DEFAULT 0,
		reason        TEXT NOT NULL DEFAULT '',
		breaker_state TEXT NOT NULL DEFAULT '',
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_briefing_audit_date ON briefing_audit(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying handle.
func (s *Store) Close() error { return s.db.Close() }

// ReplaceRecords swaps the stored snapshot for the given batch in one
// transaction, mirroring how ingestion replaces the live snapshot.
func (s *Store) ReplaceRecords(records []domain.Record) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM records`); err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO records (region, date, age_0_5, age_5_17, age_18_greater,
			bio_age_5_17, bio_age_18_greater, demo_age_5_17, demo_age_18_greater,
			total_updates, total_enrolment)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range records {
		_, err := stmt.Exec(
			r.Region, r.Date, r.Age0to5, r.Age5to17, r.Age18Plus,
			r.Bio5to17, r.Bio18Plus, r.Demo5to17, r.Demo18Plus,
			r.TotalUpdates, r.TotalEnrolment,
		)
		if err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, tx.Commit()
}

// LoadRecords reads the full stored snapshot.
func (s *Store) LoadRecords() ([]domain.Record, error) {
	rows, err := s.db.Query(
		`SELECT region, date, age_0_5, age_5_17, age_18_greater,
			bio_age_5_17, bio_age_18_greater, demo_age_5_17, demo_age_18_greater,
			total_updates, total_enrolment
		 FROM records ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var r domain.Record
		if err := rows.Scan(
			&r.Region, &r.Date, &r.Age0to5, &r.Age5to17, &r.Age18Plus,
			&r.Bio5to17, &r.Bio18Plus, &r.Demo5to17, &r.Demo18Plus,
			&r.TotalUpdates, &r.TotalEnrolment,
		); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// RecordBriefing implements gateway.AuditSink: one row per briefing attempt.
func (s *Store) RecordBriefing(id string, req gateway.Request, resp gateway.Response, breakerState string) error {
	degraded := 0
	if resp.Degraded {
		degraded = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO briefing_audit (id, model, volume, confidence, scope_label, degraded, reason, breaker_state)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, req.Model, req.Volume, req.Confidence, req.ScopeLabel, degraded, string(resp.Reason), breakerState,
	)
	return err
}

// CountBriefings reports the audit row count.
func (s *Store) CountBriefings() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM briefing_audit`).Scan(&count)
	return count, err
}
