// Package history persists per-item outcomes across runs so timing can
// be compared over time and the report subcommand can work offline from
// past runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/odvcencio/webshots/pkg/outcome"
	"github.com/odvcencio/webshots/pkg/step"
)

// Store is a sqlite-backed outcome log.
type Store struct {
	db *sql.DB
}

// Record is one persisted outcome.
type Record struct {
	RunID        string
	CollectionID string
	StepName     string
	Outcome      outcome.Outcome
	RecordedAt   time.Time
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// Single writer; WAL still helps when a report reads concurrently.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		collection_id TEXT NOT NULL,
		step_name TEXT NOT NULL,
		kind TEXT NOT NULL,
		seconds REAL NOT NULL DEFAULT 0,
		message TEXT NOT NULL DEFAULT '',
		recorded_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id);
	CREATE INDEX IF NOT EXISTS idx_outcomes_collection ON outcomes(collection_id, step_name);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordOutcome appends one outcome for an item of the given run.
func (s *Store) RecordOutcome(ctx context.Context, runID string, item step.Item, out outcome.Outcome) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes (run_id, collection_id, step_name, kind, seconds, message, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, item.CollectionID, item.StepName,
		string(out.Kind), out.Seconds, out.Message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// RunOutcomes returns every outcome of one run, ordered by collection
// then step.
func (s *Store) RunOutcomes(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, collection_id, step_name, kind, seconds, message, recorded_at
		FROM outcomes WHERE run_id = ?
		ORDER BY collection_id, step_name`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run outcomes: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// LatestRunID returns the run id of the most recently recorded outcome,
// or sql.ErrNoRows when the history is empty.
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id FROM outcomes ORDER BY id DESC LIMIT 1`).Scan(&runID)
	if err != nil {
		return "", err
	}
	return runID, nil
}

// CollectionHistory returns every recorded outcome for one collection
// across all runs, newest first.
func (s *Store) CollectionHistory(ctx context.Context, collectionID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, collection_id, step_name, kind, seconds, message, recorded_at
		FROM outcomes WHERE collection_id = ?
		ORDER BY id DESC`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("query collection history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		var kind string
		if err := rows.Scan(&r.RunID, &r.CollectionID, &r.StepName,
			&kind, &r.Outcome.Seconds, &r.Outcome.Message, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		r.Outcome.Kind = outcome.Kind(kind)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
