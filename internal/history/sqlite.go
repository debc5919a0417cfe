// Package history records completed sync runs in a SQLite database so past
// synchronizations can be inspected after the fact.
package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Shadow53/save-hoarder/internal/history/migrations"
	"github.com/Shadow53/save-hoarder/internal/hoard"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteLog stores sync run records in SQLite.
type SQLiteLog struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the history database at path and brings
// its schema up to date. path may be ":memory:" for tests.
func Open(path string) (*SQLiteLog, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating history database: %w", err)
	}
	return &SQLiteLog{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the history log relies on. Exported for tests that need a raw connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	// Foreign keys are off by default in SQLite.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return db, nil
}

// RecordRun inserts one completed sync run.
func (l *SQLiteLog) RecordRun(run hoard.SyncRun) error {
	_, err := l.db.ExecContext(context.Background(), `
		INSERT INTO sync_runs (id, pile, force, status, started_at, finished_at, applied, skipped, conflicts, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Pile, run.Force, run.Status, run.StartedAt, run.FinishedAt,
		run.Applied, run.Skipped, run.Conflicts, run.Failed,
	)
	if err != nil {
		return fmt.Errorf("recording sync run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A pile of "" lists
// runs across all piles.
func (l *SQLiteLog) ListRuns(pile string, limit int) ([]hoard.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, pile, force, status, started_at, finished_at, applied, skipped, conflicts, failed
		FROM sync_runs`
	args := []any{}
	if pile != "" {
		query += " WHERE pile = ?"
		args = append(args, pile)
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	defer rows.Close()

	var runs []hoard.SyncRun
	for rows.Next() {
		var run hoard.SyncRun
		if err := rows.Scan(&run.ID, &run.Pile, &run.Force, &run.Status,
			&run.StartedAt, &run.FinishedAt,
			&run.Applied, &run.Skipped, &run.Conflicts, &run.Failed); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync runs: %w", err)
	}
	return runs, nil
}

// CheckMigrations verifies the history database schema is up-to-date.
func (l *SQLiteLog) CheckMigrations() error {
	return migrations.CheckStatus(l.db)
}

// Path returns the database file path (or ":memory:").
func (l *SQLiteLog) Path() string {
	return l.path
}

// Close closes the database connection.
func (l *SQLiteLog) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteLog implements hoard.HistoryLog.
var _ hoard.HistoryLog = (*SQLiteLog)(nil)
