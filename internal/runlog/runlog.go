package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS training_runs (
	run_id        TEXT PRIMARY KEY,
	artifact_id   TEXT,
	status        TEXT NOT NULL,
	error         TEXT,
	source        TEXT,
	synthetic     INTEGER NOT NULL DEFAULT 0,
	row_count     INTEGER NOT NULL DEFAULT 0,
	train_rows    INTEGER NOT NULL DEFAULT 0,
	test_rows     INTEGER NOT NULL DEFAULT 0,
	symptoms      INTEGER NOT NULL DEFAULT 0,
	conditions    INTEGER NOT NULL DEFAULT 0,
	accuracy      REAL,
	schema_hash   TEXT,
	artifact_path TEXT,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_training_runs_started ON training_runs(started_at);
`

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one training attempt.
type Run struct {
	ID           string
	ArtifactID   string
	Status       string
	Error        string
	Source       string
	Synthetic    bool
	Rows         int
	TrainRows    int
	TestRows     int
	Symptoms     int
	Conditions   int
	Accuracy     float64
	SchemaHash   string
	ArtifactPath string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// timeFormat is fixed width so that stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a SQLite ledger of training runs.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger at path and runs migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("runlog: create dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("runlog: open db: %w", err)
	}
	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", schema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("runlog: migrate: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a run, assigning an ID and timestamps when unset.
func (s *Store) Record(ctx context.Context, r Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if r.StartedAt.IsZero() {
		r.StartedAt = now
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = now
	}
	if r.Status == "" {
		r.Status = StatusSucceeded
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO training_runs (run_id, artifact_id, status, error, source, synthetic,
			row_count, train_rows, test_rows, symptoms, conditions, accuracy, schema_hash,
			artifact_path, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, nullIfEmpty(r.ArtifactID), r.Status, nullIfEmpty(r.Error), nullIfEmpty(r.Source),
		boolToInt(r.Synthetic), r.Rows, r.TrainRows, r.TestRows, r.Symptoms, r.Conditions,
		r.Accuracy, nullIfEmpty(r.SchemaHash), nullIfEmpty(r.ArtifactPath),
		r.StartedAt.UTC().Format(timeFormat), r.FinishedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("runlog: insert run: %w", err)
	}
	return nil
}

const selectRuns = `SELECT run_id, artifact_id, status, error, source, synthetic, row_count,
	train_rows, test_rows, symptoms, conditions, accuracy, schema_hash, artifact_path,
	started_at, finished_at
 FROM training_runs`

// List returns up to limit runs, most recent first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	return s.query(ctx, selectRuns+` ORDER BY started_at DESC, run_id LIMIT ?`, limit)
}

// Latest returns the most recent successful run. It reports false when no
// run has succeeded yet.
func (s *Store) Latest(ctx context.Context) (Run, bool, error) {
	runs, err := s.query(ctx, selectRuns+` WHERE status = ? ORDER BY started_at DESC, run_id LIMIT 1`, StatusSucceeded)
	if err != nil || len(runs) == 0 {
		return Run{}, false, err
	}
	return runs[0], true, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("runlog: query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var artifactID, errText, source, schemaHash, artifactPath sql.NullString
		var accuracy sql.NullFloat64
		var synthetic int
		var started, finished string
		if err := rows.Scan(&r.ID, &artifactID, &r.Status, &errText, &source, &synthetic,
			&r.Rows, &r.TrainRows, &r.TestRows, &r.Symptoms, &r.Conditions, &accuracy,
			&schemaHash, &artifactPath, &started, &finished); err != nil {
			return nil, fmt.Errorf("runlog: scan row: %w", err)
		}
		r.ArtifactID = artifactID.String
		r.Error = errText.String
		r.Source = source.String
		r.SchemaHash = schemaHash.String
		r.ArtifactPath = artifactPath.String
		r.Accuracy = accuracy.Float64
		r.Synthetic = synthetic != 0
		r.StartedAt, _ = time.Parse(timeFormat, started)
		r.FinishedAt, _ = time.Parse(timeFormat, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
