// ABOUTME: Recent projects history backed by SQLite
// ABOUTME: Remembers opened projects with their audio file and last playhead
package recent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for projects that were never recorded
var ErrNotFound = errors.New("project not in history")

// Entry is one remembered project
type Entry struct {
	Path       string
	AudioPath  string
	PositionMs int64
	OpenedAt   time.Time
}

// Store is the recent projects database
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS recent_projects (
	path TEXT PRIMARY KEY,
	audio_path TEXT NOT NULL,
	position_ms INTEGER NOT NULL DEFAULT 0,
	opened_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recent_opened_at ON recent_projects(opened_at);
`

// Open opens or creates the database at path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// A single connection keeps writes serialized
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history table: %w", err)
	}
	return &Store{db: db}, nil
}

// Touch records that the project at path was used, with its current audio
// file and playhead
func (s *Store) Touch(ctx context.Context, e Entry) error {
	if e.OpenedAt.IsZero() {
		e.OpenedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recent_projects (path, audio_path, position_ms, opened_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			audio_path = excluded.audio_path,
			position_ms = excluded.position_ms,
			opened_at = excluded.opened_at`,
		e.Path, e.AudioPath, e.PositionMs, e.OpenedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", e.Path, err)
	}
	return nil
}

// Get returns the history entry for path
func (s *Store) Get(ctx context.Context, path string) (Entry, error) {
	var (
		e        Entry
		openedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT path, audio_path, position_ms, opened_at FROM recent_projects WHERE path = ?", path).
		Scan(&e.Path, &e.AudioPath, &e.PositionMs, &openedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read history for %s: %w", path, err)
	}
	e.OpenedAt = time.UnixMilli(openedAt)
	return e, nil
}

// List returns up to limit entries, most recently opened first
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT path, audio_path, position_ms, opened_at FROM recent_projects ORDER BY opened_at DESC, path LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			openedAt int64
		)
		if err := rows.Scan(&e.Path, &e.AudioPath, &e.PositionMs, &openedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.OpenedAt = time.UnixMilli(openedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Forget removes path from the history
func (s *Store) Forget(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM recent_projects WHERE path = ?", path); err != nil {
		return fmt.Errorf("failed to forget %s: %w", path, err)
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
