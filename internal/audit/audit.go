// Package audit persists execution, confirmation and violation history in
// the sidecar's SQLite database.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pipali/pipali/internal/logger"
	"github.com/pipali/pipali/internal/shell"
)

// Trail is the SQLite-backed audit recorder.
type Trail struct {
	db     *sql.DB
	dbPath string
}

// NewTrail opens (or creates) the audit database at dbPath.
func NewTrail(dbPath string) (*Trail, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	t := &Trail{db: db, dbPath: dbPath}
	if err := t.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return t, nil
}

// Close closes the database connection.
func (t *Trail) Close() error {
	return t.db.Close()
}

func (t *Trail) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		context_key TEXT NOT NULL,
		command TEXT NOT NULL,
		mode TEXT NOT NULL,
		exit_code INTEGER NOT NULL DEFAULT 0,
		timed_out BOOLEAN NOT NULL DEFAULT FALSE,
		violation BOOLEAN NOT NULL DEFAULT FALSE,
		denied BOOLEAN NOT NULL DEFAULT FALSE,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS confirmations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		context_key TEXT NOT NULL,
		operation TEXT NOT NULL,
		selected_option TEXT,
		approved BOOLEAN NOT NULL DEFAULT FALSE,
		recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS violations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		context_key TEXT NOT NULL,
		command TEXT NOT NULL,
		denied_path TEXT,
		recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_executions_context ON executions(context_key);
	CREATE INDEX IF NOT EXISTS idx_confirmations_context ON confirmations(context_key);
	`
	_, err := t.db.Exec(schema)
	return err
}

// RecordExecution implements shell.Auditor. Failures are logged, never
// surfaced: auditing must not fail an execution.
func (t *Trail) RecordExecution(rec shell.ExecutionRecord) {
	_, err := t.db.Exec(`
		INSERT INTO executions (context_key, command, mode, exit_code, timed_out, violation, denied, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ContextKey, rec.Command, string(rec.Mode), rec.ExitCode, rec.TimedOut, rec.Violation, rec.Denied, rec.DurationMs)
	if err != nil {
		logger.Error("audit: failed to record execution: %v", err)
	}
}

// RecordConfirmation stores the resolution of one confirmation request.
func (t *Trail) RecordConfirmation(requestID, contextKey, operation, selectedOption string, approved bool) {
	_, err := t.db.Exec(`
		INSERT INTO confirmations (request_id, context_key, operation, selected_option, approved)
		VALUES (?, ?, ?, ?, ?)
	`, requestID, contextKey, operation, selectedOption, approved)
	if err != nil {
		logger.Error("audit: failed to record confirmation: %v", err)
	}
}

// RecordViolation stores one denied access, one row per denied path. An
// empty path list records a single row with the path left NULL.
func (t *Trail) RecordViolation(contextKey, command string, deniedPaths []string) {
	if len(deniedPaths) == 0 {
		if _, err := t.db.Exec(`
			INSERT INTO violations (context_key, command) VALUES (?, ?)
		`, contextKey, command); err != nil {
			logger.Error("audit: failed to record violation: %v", err)
		}
		return
	}
	for _, p := range deniedPaths {
		if _, err := t.db.Exec(`
			INSERT INTO violations (context_key, command, denied_path) VALUES (?, ?, ?)
		`, contextKey, command, p); err != nil {
			logger.Error("audit: failed to record violation: %v", err)
		}
	}
}

// ExecutionRow is one persisted execution.
type ExecutionRow struct {
	ID         int64     `json:"id"`
	ContextKey string    `json:"context_key"`
	Command    string    `json:"command"`
	Mode       string    `json:"mode"`
	ExitCode   int       `json:"exit_code"`
	TimedOut   bool      `json:"timed_out"`
	Violation  bool      `json:"violation"`
	Denied     bool      `json:"denied"`
	DurationMs int64     `json:"duration_ms"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RecentExecutions returns the newest executions, most recent first.
func (t *Trail) RecentExecutions(limit int) ([]ExecutionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := t.db.Query(`
		SELECT id, context_key, command, mode, exit_code, timed_out, violation, denied, duration_ms, recorded_at
		FROM executions
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExecutionRow
	for rows.Next() {
		var row ExecutionRow
		if err := rows.Scan(&row.ID, &row.ContextKey, &row.Command, &row.Mode, &row.ExitCode,
			&row.TimedOut, &row.Violation, &row.Denied, &row.DurationMs, &row.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
