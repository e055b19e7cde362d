// Package history keeps the durable record of pipeline runs: what ran,
// against which job folder, how it ended, and the rename journal needed
// to undo an applied rename run.
//
// Storage is a single SQLite file opened with one connection. Timestamps
// are stored as RFC 3339 UTC strings so that string order matches time
// order, which the listing and pruning queries rely on.
package history

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaFS embed.FS

// ErrNotFound is returned when a run or journal row does not exist.
var ErrNotFound = errors.New("history: not found")

// RunStatus is the terminal (or current) state of a recorded run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Run is one recorded pipeline run.
type Run struct {
	ID           string
	Kind         string
	JobDir       string
	StartedAt    time.Time
	FinishedAt   time.Time // zero while running
	Status       RunStatus
	RowsWritten  int
	MissingPoses int
	Error        string
}

// JournalEntry is one applied or attempted rename within a run.
type JournalEntry struct {
	RunID   string
	Seq     int
	Source  string
	Target  string
	Applied bool
	Undone  bool
}

// Store is the SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path and applies the
// schema. The parent directory is created when missing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}

	// SQLite behaves best with a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read embedded schema: %w", err)
	}
	if _, err := s.db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("apply history schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// BeginRun records the start of a run in the running state.
func (s *Store) BeginRun(id, kind, jobDir string) error {
	_, err := s.db.Exec(`
		INSERT INTO job_runs (id, kind, job_dir, started_at, status)
		VALUES (?, ?, ?, ?, ?)`,
		id, kind, jobDir, formatTime(time.Now()), string(RunRunning),
	)
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// FinishRun records a run's terminal state and counters. A nil runErr
// stores an empty error string.
func (s *Store) FinishRun(id string, status RunStatus, rowsWritten, missingPoses int, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := s.db.Exec(`
		UPDATE job_runs
		SET finished_at = ?, status = ?, rows_written = ?, missing_poses = ?, error = ?
		WHERE id = ?`,
		formatTime(time.Now()), string(status), rowsWritten, missingPoses, msg, id,
	)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return requireAffected(res)
}

// GetRun fetches one run by id.
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, kind, job_dir, started_at, finished_at, status, rows_written, missing_poses, error
		FROM job_runs WHERE id = ?`, id)

	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. A non-positive
// limit lists up to 50.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, kind, job_dir, started_at, finished_at, status, rows_written, missing_poses, error
		FROM job_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// AppendJournal records one rename attempt for a run.
func (s *Store) AppendJournal(e JournalEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO rename_journal (run_id, seq, source, target, applied)
		VALUES (?, ?, ?, ?, ?)`,
		e.RunID, e.Seq, e.Source, e.Target, boolInt(e.Applied),
	)
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

// JournalForRun returns a run's journal in sequence order.
func (s *Store) JournalForRun(runID string) ([]JournalEntry, error) {
	rows, err := s.db.Query(`
		SELECT run_id, seq, source, target, applied, undone
		FROM rename_journal WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("load journal for %s: %w", runID, err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var applied, undone int
		if err := rows.Scan(&e.RunID, &e.Seq, &e.Source, &e.Target, &applied, &undone); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Applied = applied != 0
		e.Undone = undone != 0
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load journal for %s: %w", runID, err)
	}
	return entries, nil
}

// MarkUndone flags one journal entry as undone.
func (s *Store) MarkUndone(runID string, seq int) error {
	res, err := s.db.Exec(
		`UPDATE rename_journal SET undone = 1 WHERE run_id = ? AND seq = ?`,
		runID, seq,
	)
	if err != nil {
		return fmt.Errorf("mark undone: %w", err)
	}
	return requireAffected(res)
}

// PruneRunsBefore deletes finished runs started before cutoff, along with
// their journals, and reports how many runs were removed. Running runs
// are never pruned.
func (s *Store) PruneRunsBefore(cutoff time.Time) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin prune: %w", err)
	}
	defer tx.Rollback()

	before := formatTime(cutoff)
	if _, err := tx.Exec(`
		DELETE FROM rename_journal WHERE run_id IN (
			SELECT id FROM job_runs WHERE started_at < ? AND status != ?
		)`, before, string(RunRunning)); err != nil {
		return 0, fmt.Errorf("prune journals: %w", err)
	}

	res, err := tx.Exec(
		`DELETE FROM job_runs WHERE started_at < ? AND status != ?`,
		before, string(RunRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	pruned, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return pruned, nil
}

func scanRun(scan func(dest ...any) error) (*Run, error) {
	var run Run
	var started, finished, status string
	if err := scan(&run.ID, &run.Kind, &run.JobDir, &started, &finished, &status,
		&run.RowsWritten, &run.MissingPoses, &run.Error); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)

	var err error
	if run.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return nil, err
	}
	return &run, nil
}

// formatTime renders a timestamp in the fixed-width UTC form the schema
// stores. Second precision keeps the format uniform so string comparison
// in SQL matches chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
