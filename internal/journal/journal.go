package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one committed capture.
type Entry struct {
	ID         string
	Filename   string
	Title      string
	CapturedAt time.Time
}

// Store records every committed capture in a small SQLite database. It
// backs /status, /recent and enrichment targeting; the durable pending
// session state lives in the JSON session store, not here.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the capture journal at the given path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	createCapturesTable := `
	CREATE TABLE IF NOT EXISTS captures (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		title TEXT,
		captured_at DATETIME
	);`

	if _, err := db.Exec(createCapturesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create captures table: %w", err)
	}

	return &Store{db: db}, nil
}

// Record inserts one committed capture.
func (s *Store) Record(e Entry) error {
	_, err := s.db.Exec(
		"INSERT INTO captures (id, filename, title, captured_at) VALUES (?, ?, ?, ?)",
		e.ID, e.Filename, e.Title, e.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record capture: %w", err)
	}
	return nil
}

// Last returns the most recent capture, or nil if nothing has been
// committed yet.
func (s *Store) Last() (*Entry, error) {
	var e Entry
	err := s.db.QueryRow(
		"SELECT id, filename, title, captured_at FROM captures ORDER BY captured_at DESC, id DESC LIMIT 1",
	).Scan(&e.ID, &e.Filename, &e.Title, &e.CapturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last capture: %w", err)
	}
	return &e, nil
}

// Recent returns up to limit captures, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		"SELECT id, filename, title, captured_at FROM captures ORDER BY captured_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list captures: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Filename, &e.Title, &e.CapturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
