package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const timeFormat = time.RFC3339

var migrations = []string{
	`CREATE TABLE tasks (
		id               TEXT PRIMARY KEY,
		type             TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL,
		streamed_content TEXT NOT NULL DEFAULT '',
		queue_position   INTEGER NOT NULL DEFAULT 0,
		result           TEXT NOT NULL DEFAULT '',
		error            TEXT NOT NULL DEFAULT '',
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	);
	CREATE INDEX idx_tasks_status ON tasks(status);
	CREATE INDEX idx_tasks_updated_at ON tasks(updated_at);`,
}

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, zero CGO).
type SQLiteStore struct {
	db            *sql.DB
	retentionDays int
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
// The database file is created with 0600 permissions and its parent
// directory with 0700. retentionDays controls Cleanup; 0 keeps everything.
func NewSQLiteStore(path string, retentionDays int) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("creating database file: %w", err)
		}
		_ = f.Close()
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, retentionDays: retentionDays}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		slog.Info("applying migration", "version", i+1)
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveTask inserts or replaces an archived task.
func (s *SQLiteStore) SaveTask(t ArchivedTask) error {
	_, err := s.db.Exec(`INSERT INTO tasks
		(id, type, status, streamed_content, queue_position, result, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			streamed_content = excluded.streamed_content,
			queue_position = excluded.queue_position,
			result = excluded.result,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		t.ID, t.Type, t.Status, t.StreamedContent, t.QueuePosition,
		t.Result, t.Error, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving task: %w", err)
	}
	return nil
}

// GetTask returns one archived task, or nil if absent.
func (s *SQLiteStore) GetTask(id string) (*ArchivedTask, error) {
	row := s.db.QueryRow(`SELECT id, type, status, streamed_content, queue_position,
		result, error, created_at, updated_at
		FROM tasks WHERE id = ?`, id)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading task: %w", err)
	}
	return t, nil
}

// ListTasks returns archived tasks matching the filter, newest first.
func (s *SQLiteStore) ListTasks(f Filter) ([]ArchivedTask, error) {
	query := `SELECT id, type, status, streamed_content, queue_position,
		result, error, created_at, updated_at FROM tasks WHERE 1=1`
	var args []any

	if f.Status != "" && f.Status != "all" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	if !f.Since.IsZero() {
		query += " AND updated_at >= ?"
		args = append(args, formatTime(f.Since))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []ArchivedTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// DeleteTask removes an archived task.
func (s *SQLiteStore) DeleteTask(id string) error {
	if _, err := s.db.Exec("DELETE FROM tasks WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	return nil
}

// Cleanup removes archived tasks older than the retention window.
func (s *SQLiteStore) Cleanup() error {
	if s.retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)

	res, err := s.db.Exec("DELETE FROM tasks WHERE updated_at < ?", formatTime(cutoff))
	if err != nil {
		return fmt.Errorf("cleaning up tasks: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		slog.Info("archive cleanup", "deleted", n, "retention_days", s.retentionDays)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTask(row scannable) (*ArchivedTask, error) {
	var t ArchivedTask
	var createdAt, updatedAt string

	err := row.Scan(&t.ID, &t.Type, &t.Status, &t.StreamedContent, &t.QueuePosition,
		&t.Result, &t.Error, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
