package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hashmove/internal/database/migrations"
	"hashmove/internal/hm"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Run statuses.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusError   = "error"
)

// SQLiteJournal implements hm.Journal using SQLite.
type SQLiteJournal struct {
	db   *sql.DB
	path string
}

// NewSQLiteJournal opens the journal at path, applying pending migrations.
// path can be a file path or ":memory:" for an in-memory journal.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating journal: %w", err)
	}
	return &SQLiteJournal{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for an in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Run operations

func (j *SQLiteJournal) StartRun(id, operation, migrationID string, dryRun bool, startedAt time.Time) (*hm.Run, error) {
	run := &hm.Run{
		ID:          id,
		Operation:   operation,
		MigrationID: migrationID,
		DryRun:      dryRun,
		StartedAt:   startedAt.UTC(),
		Status:      RunStatusRunning,
	}
	_, err := j.db.Exec(`
		INSERT INTO runs (id, operation, migration_id, dry_run, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Operation, run.MigrationID, run.DryRun, run.StartedAt, run.Status)
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	return run, nil
}

func (j *SQLiteJournal) FinishRun(run *hm.Run, finishedAt time.Time) error {
	run.FinishedAt = sql.NullTime{Time: finishedAt.UTC(), Valid: true}
	res, err := j.db.Exec(`
		UPDATE runs
		SET finished_at = ?, status = ?, migrated = ?, skipped = ?, failed = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.Migrated, run.Skipped, run.Failed, run.ID)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finishing run: run %s not found", run.ID)
	}
	return nil
}

func (j *SQLiteJournal) ListRuns(limit int) ([]*hm.Run, error) {
	rows, err := j.db.Query(`
		SELECT id, operation, migration_id, dry_run, started_at, finished_at, status, migrated, skipped, failed
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*hm.Run
	for rows.Next() {
		r := &hm.Run{}
		if err := rows.Scan(&r.ID, &r.Operation, &r.MigrationID, &r.DryRun, &r.StartedAt,
			&r.FinishedAt, &r.Status, &r.Migrated, &r.Skipped, &r.Failed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// Unit operations

func (j *SQLiteJournal) RecordUnit(runID string, r *hm.UnitResult, recordedAt time.Time) error {
	var errText sql.NullString
	if r.Err != nil {
		errText = sql.NullString{String: r.Err.Error(), Valid: true}
	}
	_, err := j.db.Exec(`
		INSERT INTO units (run_id, source, old_path, new_path, outcome, reason, strategy, action,
			matched, updated, attempts, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.Source, r.OldPath, r.NewPath, string(r.Outcome), string(r.Reason),
		r.Strategy.String(), r.Action.String(), r.Matched, r.Updated, r.Attempts, errText, recordedAt.UTC())
	if err != nil {
		return fmt.Errorf("recording unit %s: %w", r.Source, err)
	}
	return nil
}

// IsMigrated reports whether a live migrate run finished source with outcome "done".
func (j *SQLiteJournal) IsMigrated(source string) (bool, error) {
	var one int
	err := j.db.QueryRow(`
		SELECT 1
		FROM units u
		JOIN runs r ON r.id = u.run_id
		WHERE u.source = ? AND u.outcome = ? AND r.operation = ? AND r.dry_run = 0
		LIMIT 1`,
		source, string(hm.OutcomeDone), hm.OperationMigrate).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("checking journal for %s: %w", source, err)
	}
	return true, nil
}

// UnitCount returns the number of units recorded for a run.
func (j *SQLiteJournal) UnitCount(runID string) (int, error) {
	var n int
	if err := j.db.QueryRow("SELECT COUNT(*) FROM units WHERE run_id = ?", runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting units: %w", err)
	}
	return n, nil
}

// Path returns the file path of the journal.
func (j *SQLiteJournal) Path() string {
	return j.path
}

// CheckMigrations verifies the journal schema is current.
func (j *SQLiteJournal) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(j.db)
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// Compile-time check that SQLiteJournal implements hm.Journal
var _ hm.Journal = (*SQLiteJournal)(nil)
