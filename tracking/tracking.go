// Package tracking keeps a SQLite registry of pipeline runs.
package tracking

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/polishequity/analytics/pkg/errors"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one pipeline execution.
type Run struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	Status        string
	Error         string
	Seed          uint64
	TrainRows     int
	TestRows      int
	MicroAccuracy float64
	MacroAccuracy float64
	LogLoss       float64
	ModelPath     string
}

// Store is the run registry.
type Store struct {
	db *sql.DB
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	seed INTEGER NOT NULL,
	train_rows INTEGER NOT NULL,
	test_rows INTEGER NOT NULL,
	micro_accuracy REAL NOT NULL,
	macro_accuracy REAL NOT NULL,
	log_loss REAL NOT NULL,
	model_path TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// Open opens or creates the registry at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create tracking directory for %s", path)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open tracking db %s", path)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create runs table")
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts or replaces a run.
func (s *Store) Record(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(id, started_at, finished_at, status, error, seed, train_rows, test_rows,
			 micro_accuracy, macro_accuracy, log_loss, model_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, formatTime(r.StartedAt), formatTime(r.FinishedAt), r.Status, r.Error,
		int64(r.Seed), r.TrainRows, r.TestRows,
		r.MicroAccuracy, r.MacroAccuracy, r.LogLoss, r.ModelPath,
	)
	return errors.Wrapf(err, "record run %s", r.ID)
}

// Get returns the run with id, or sql.ErrNoRows wrapped.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id)
	r, err := scanRun(row)
	if err != nil {
		return Run{}, errors.Wrapf(err, "get run %s", id)
	}
	return r, nil
}

// List returns the most recent runs first, at most limit (all if <= 0).
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := selectRuns + ` ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "list runs")
}

const selectRuns = `
	SELECT id, started_at, finished_at, status, error, seed, train_rows, test_rows,
	       micro_accuracy, macro_accuracy, log_loss, model_path
	FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	var started, finished string
	var seed int64
	err := sc.Scan(&r.ID, &started, &finished, &r.Status, &r.Error, &seed,
		&r.TrainRows, &r.TestRows, &r.MicroAccuracy, &r.MacroAccuracy, &r.LogLoss, &r.ModelPath)
	if err != nil {
		return Run{}, err
	}
	r.Seed = uint64(seed)
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Run{}, err
	}
	if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return Run{}, err
	}
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
