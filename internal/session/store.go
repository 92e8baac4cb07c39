package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Store is durable persistence of at most one pending session per user.
type Store interface {
	Load() (map[string]*Session, error)
	Save(sessions map[string]*Session) error
}

// FileStore keeps the pending-session table in a single JSON file so the
// state stays inspectable with a text editor. Saves go through a temp file
// and rename, so a crash mid-write never corrupts the store.
type FileStore struct {
	path   string
	logger *slog.Logger
}

// NewFileStore creates a file-backed session store at the given path.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// Load reads the session table. A missing file yields an empty table; a
// malformed file is logged and treated as empty rather than crashing.
func (s *FileStore) Load() (map[string]*Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]*Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session store: %w", err)
	}

	var sessions map[string]*Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		s.logger.Warn("session store is malformed, starting empty", "path", s.path, "error", err)
		return map[string]*Session{}, nil
	}
	if sessions == nil {
		sessions = map[string]*Session{}
	}
	return sessions, nil
}

// Save atomically replaces the session table on disk.
func (s *FileStore) Save(sessions map[string]*Session) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write session store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace session store: %w", err)
	}
	return nil
}
