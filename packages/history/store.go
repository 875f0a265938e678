// Package history records run outcomes in a SQLite database so earlier runs
// can be listed and compared.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/jsonprobe/packages/core/runner"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// DefaultPath is used when no history database is configured.
const DefaultPath = ".jsonprobe/history.db"

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	source      TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	p95_us      INTEGER
);
CREATE TABLE IF NOT EXISTS case_results (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	message     TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);
`

// Run is a stored run summary.
type Run struct {
	ID        string
	StartedAt time.Time
	Source    string
	Duration  time.Duration
	Passed    int
	Failed    int
	Skipped   int
	// P95 is zero when the run sent no requests.
	P95 time.Duration
}

// Total returns the number of cases in the run.
func (r *Run) Total() int {
	return r.Passed + r.Failed + r.Skipped
}

// CaseRecord is one stored case outcome.
type CaseRecord struct {
	Position int
	Name     string
	Status   string
	Duration time.Duration
	Message  string
}

// Store is a run history database.
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// Open opens (creating if needed) the history database at connectionString.
// Accepted forms: sqlite://path, sqlite:path, or a bare file path.
func Open(connectionString string) (*Store, error) {
	dsn, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}

	if err := ensureDir(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &Store{
		db:           db,
		queryTimeout: 30 * time.Second,
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores a run and its case outcomes in one transaction.
func (s *Store) Record(ctx context.Context, source string, run *runner.RunResult) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var p95 sql.NullInt64
	if run.Latency != nil {
		p95 = sql.NullInt64{Int64: run.Latency.P95.Microseconds(), Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, source, duration_ms, passed, failed, skipped, p95_us)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(timeLayout), source,
		run.Duration.Milliseconds(), run.Passed, run.Failed, run.Skipped, p95)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO case_results (run_id, position, name, status, duration_ms, message)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare case insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range run.Results {
		if _, err := stmt.ExecContext(ctx, run.ID, i, c.Name, c.Status(), c.Duration.Milliseconds(), c.FailureMessage()); err != nil {
			return fmt.Errorf("insert case %q: %w", c.Name, err)
		}
	}

	return tx.Commit()
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 10
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, source, duration_ms, passed, failed, skipped, p95_us
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var (
			run        Run
			startedAt  string
			durationMs int64
			p95        sql.NullInt64
		)
		if err := rows.Scan(&run.ID, &startedAt, &run.Source, &durationMs, &run.Passed, &run.Failed, &run.Skipped, &p95); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		run.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("run %s has invalid start time %q: %w", run.ID, startedAt, err)
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		if p95.Valid {
			run.P95 = time.Duration(p95.Int64) * time.Microsecond
		}
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// Cases returns the stored case outcomes of a run in execution order.
func (s *Store) Cases(ctx context.Context, runID string) ([]*CaseRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT position, name, status, duration_ms, message
		 FROM case_results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var records []*CaseRecord
	for rows.Next() {
		var (
			rec        CaseRecord
			durationMs int64
		)
		if err := rows.Scan(&rec.Position, &rec.Name, &rec.Status, &durationMs, &rec.Message); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// parseConnectionString returns the SQLite DSN for connStr.
// Supported formats:
// - sqlite://path/to/history.db
// - sqlite:./history.db
// - path/to/history.db
func parseConnectionString(connStr string) (string, error) {
	connStr = strings.TrimSpace(connStr)
	if connStr == "" {
		return "", fmt.Errorf("empty history database path")
	}

	if strings.HasPrefix(connStr, "sqlite://") {
		return strings.TrimPrefix(connStr, "sqlite://"), nil
	}
	if strings.HasPrefix(connStr, "sqlite:") {
		return strings.TrimPrefix(connStr, "sqlite:"), nil
	}

	if scheme, _, found := strings.Cut(connStr, "://"); found {
		return "", fmt.Errorf("unsupported database scheme: %s (only sqlite is supported)", scheme)
	}
	return connStr, nil
}

// ensureDir creates the parent directory of a file-backed DSN.
func ensureDir(dsn string) error {
	path, _, _ := strings.Cut(dsn, "?")
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	return nil
}
