// Package cursor persists the polling offset: the highest Telegram
// update_id that has been fully fetched. The next poll always requests
// updates strictly greater than this value.
package cursor

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// state is the single record kept on disk.
type state struct {
	LastUpdateID int64     `json:"last_update_id"`
	CheckedAt    time.Time `json:"checked_at"`
}

// Store holds the durable cursor in a small JSON file. A missing or
// corrupt file degrades to offset 0, which replays from the beginning;
// replay is safe because log appends tolerate duplicates.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a cursor store backed by the given file path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		path:   path,
		logger: logger.With("component", "cursor"),
	}
}

// Load reads the persisted offset. It never fails: missing or unreadable
// state yields 0, meaning no updates have been seen.
func (s *Store) Load() int64 {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Cursor file unreadable, starting from 0", "path", s.path, "error", err)
		}
		return 0
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn("Cursor file corrupt, starting from 0", "path", s.path, "error", err)
		return 0
	}
	if st.LastUpdateID < 0 {
		return 0
	}
	return st.LastUpdateID
}

// Save overwrites the persisted offset together with a last-checked
// timestamp. The write goes to a temp file first and is renamed into
// place so a crash mid-write never leaves a torn cursor behind.
func (s *Store) Save(offset int64) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create cursor directory: %w", err)
	}

	data, err := json.Marshal(state{
		LastUpdateID: offset,
		CheckedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode cursor state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cursor temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace cursor file: %w", err)
	}
	return nil
}
