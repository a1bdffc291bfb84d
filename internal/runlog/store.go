// Package runlog provides a SQLite-backed journal of analysis runs so that
// past results can be reviewed after the CLI exits.
package runlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mohanadkandil/logSense/pkg/model"
)

// Run is one completed (or failed) analysis run.
type Run struct {
	ID           string    `json:"id"`
	IncidentID   string    `json:"incidentId"`
	Subject      string    `json:"subject"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
	Outcome      string    `json:"outcome"` // "success", "error" or "timeout"
	RootCause    string    `json:"rootCause"`
	Confidence   float64   `json:"confidence"`
	ErrorMessage string    `json:"errorMessage"`

	Steps []model.StepRecord `json:"steps"`
}

// Store provides persistent run history backed by SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates or opens a SQLite database at the given path. Parent
// directories are created as needed.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create runlog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies schema migrations.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []func(*sql.DB) error{
		migrateV1,
		migrateV2,
	}

	for i := version; i < len(migrations); i++ {
		slog.Info("Applying runlog migration", "version", i+1)
		if err := migrations[i](s.db); err != nil {
			return fmt.Errorf("migration v%d: %w", i+1, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("record migration v%d: %w", i+1, err)
		}
	}

	return nil
}

// migrateV1 creates the initial runs table.
func migrateV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			incident_id TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			outcome TEXT NOT NULL,
			root_cause TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_runs_incident ON runs(incident_id);
	`)
	return err
}

// migrateV2 adds the steps_json column so step logs survive alongside the
// run summary.
func migrateV2(db *sql.DB) error {
	_, err := db.Exec(`ALTER TABLE runs ADD COLUMN steps_json TEXT NOT NULL DEFAULT '[]'`)
	return err
}

// SaveRun inserts or replaces a run record.
func (s *Store) SaveRun(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stepsJSON, err := json.Marshal(run.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO runs
			(id, incident_id, subject, started_at, finished_at, outcome, root_cause, confidence, error_message, steps_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.IncidentID,
		run.Subject,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.Outcome,
		run.RootCause,
		run.Confidence,
		run.ErrorMessage,
		string(stepsJSON),
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// GetRun returns one run by ID, or sql.ErrNoRows if it does not exist.
func (s *Store) GetRun(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, incident_id, subject, started_at, finished_at, outcome, root_cause, confidence, error_message, steps_json
		FROM runs WHERE id = ?
	`, id)
	return scanRun(row)
}

// ListRuns returns recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, incident_id, subject, started_at, finished_at, outcome, root_cause, confidence, error_message, steps_json
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListRunsForIncident returns runs for a single incident, newest first.
func (s *Store) ListRunsForIncident(incidentID string, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, incident_id, subject, started_at, finished_at, outcome, root_cause, confidence, error_message, steps_json
		FROM runs WHERE incident_id = ? ORDER BY started_at DESC LIMIT ?
	`, incidentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs for incident: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// PruneOlderThan deletes runs that started before the cutoff and returns
// the number removed.
func (s *Store) PruneOlderThan(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAt, finishedAt, stepsJSON string
	err := row.Scan(
		&run.ID,
		&run.IncidentID,
		&run.Subject,
		&startedAt,
		&finishedAt,
		&run.Outcome,
		&run.RootCause,
		&run.Confidence,
		&run.ErrorMessage,
		&stepsJSON,
	)
	if err != nil {
		return nil, err
	}

	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	if err := json.Unmarshal([]byte(stepsJSON), &run.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	return &run, nil
}
