// Package ledger records every artifact write and compile failure in a
// SQLite database so builds can be audited and compared.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"brainc/internal/logging"
)

// ArtifactRecord is one written artifact.
type ArtifactRecord struct {
	ID           int64
	SessionID    string
	DefinitionID string
	Kind         string
	Target       string
	Path         string
	ContentHash  string
	Tokens       int
	Warnings     []string
	CompiledAt   time.Time
}

// FailureRecord is one failed (definition, target) pair.
type FailureRecord struct {
	ID           int64
	SessionID    string
	DefinitionID string
	Target       string
	Kind         string
	Message      string
	FailedAt     time.Time
}

// Ledger is a SQLite-backed build history.
type Ledger struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Open creates or opens the ledger database at dbPath.
func Open(dbPath string) (*Ledger, error) {
	timer := logging.StartTimer(logging.CategoryLedger, "ledger.Open")
	defer timer.Stop()

	if dbPath == "" {
		return nil, fmt.Errorf("database path required")
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}

	l := &Ledger{db: db, dbPath: dbPath}
	if err := l.initializeSchema(); err != nil {
		db.Close()
		logging.Get(logging.CategoryLedger).Error("Failed to initialize ledger schema: %v", err)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Get(logging.CategoryLedger).Info("ledger opened at %s", dbPath)
	return l, nil
}

func (l *Ledger) initializeSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		definition_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		target TEXT NOT NULL,
		path TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		tokens INTEGER NOT NULL DEFAULT 0,
		warnings TEXT NOT NULL DEFAULT '',
		compiled_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_def_target ON artifacts(definition_id, target);
	CREATE INDEX IF NOT EXISTS idx_artifacts_session ON artifacts(session_id);

	CREATE TABLE IF NOT EXISTS failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		definition_id TEXT NOT NULL,
		target TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		message TEXT NOT NULL,
		failed_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_failures_session ON failures(session_id);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create ledger tables: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.dbPath
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores the artifacts and failures of one session in a single
// transaction.
func (l *Ledger) Record(ctx context.Context, sessionID string, artifacts []ArtifactRecord, failures []FailureRecord) error {
	timer := logging.StartTimer(logging.CategoryLedger, "Ledger.Record")
	defer timer.Stop()

	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, a := range artifacts {
		at := a.CompiledAt
		if at.IsZero() {
			at = time.Now()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO artifacts (session_id, definition_id, kind, target, path, content_hash, tokens, warnings, compiled_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sessionID, a.DefinitionID, a.Kind, a.Target, a.Path, a.ContentHash, a.Tokens,
			strings.Join(a.Warnings, "\n"), at.UTC())
		if err != nil {
			return fmt.Errorf("failed to record artifact %s/%s: %w", a.DefinitionID, a.Target, err)
		}
	}

	for _, f := range failures {
		at := f.FailedAt
		if at.IsZero() {
			at = time.Now()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO failures (session_id, definition_id, target, kind, message, failed_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, f.DefinitionID, f.Target, f.Kind, f.Message, at.UTC())
		if err != nil {
			return fmt.Errorf("failed to record failure %s/%s: %w", f.DefinitionID, f.Target, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger entries: %w", err)
	}
	logging.Get(logging.CategoryLedger).Debug("session %s: recorded %d artifacts, %d failures",
		sessionID, len(artifacts), len(failures))
	return nil
}

// Recent returns the most recent artifact records, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]ArtifactRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, session_id, definition_id, kind, target, path, content_hash, tokens, warnings, compiled_at
		FROM artifacts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var out []ArtifactRecord
	for rows.Next() {
		var a ArtifactRecord
		var warnings string
		if err := rows.Scan(&a.ID, &a.SessionID, &a.DefinitionID, &a.Kind, &a.Target, &a.Path,
			&a.ContentHash, &a.Tokens, &warnings, &a.CompiledAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		if warnings != "" {
			a.Warnings = strings.Split(warnings, "\n")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Failures returns the failures recorded for a session.
func (l *Ledger) Failures(ctx context.Context, sessionID string) ([]FailureRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, session_id, definition_id, target, kind, message, failed_at
		FROM failures WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	var out []FailureRecord
	for rows.Next() {
		var f FailureRecord
		if err := rows.Scan(&f.ID, &f.SessionID, &f.DefinitionID, &f.Target, &f.Kind, &f.Message, &f.FailedAt); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// LastHash returns the content hash of the most recent artifact for a
// (definition, target) pair. ok is false when none was recorded.
func (l *Ledger) LastHash(ctx context.Context, definitionID, target string) (hash string, ok bool, err error) {
	err = l.db.QueryRowContext(ctx, `
		SELECT content_hash FROM artifacts
		WHERE definition_id = ? AND target = ?
		ORDER BY id DESC LIMIT 1`, definitionID, target).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query last hash: %w", err)
	}
	return hash, true, nil
}
