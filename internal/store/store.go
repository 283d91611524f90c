// Package store provides the per-chat context store: an append-only JSONL
// message log per chat plus a file inventory derived from the chat's media
// subdirectories.
package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

const logFileName = "messages.jsonl"

// Store defines the interface for context persistence operations.
// Methods accept context.Context for cancellation.
type Store interface {
	// Append writes one message record to the chat's log. Append is the
	// only mutation; records are never edited or deleted.
	Append(ctx context.Context, msg *Message) error

	// History returns the most recent 'limit' records for a chat,
	// oldest-first. A missing or unreadable log yields an empty slice.
	History(ctx context.Context, chatID int64, limit int) ([]Message, error)

	// UserContext composes History with a fresh file inventory scan.
	UserContext(ctx context.Context, chatID int64, limit int) (*UserContext, error)

	// ListFiles enumerates the chat's media subdirectories, optionally
	// filtered by kind ("voice", "documents" or "images").
	ListFiles(ctx context.Context, chatID int64, kind string) ([]FileRecord, error)

	// SearchFiles performs a case-insensitive substring match on file names.
	SearchFiles(ctx context.Context, chatID int64, query string) ([]FileRecord, error)

	// ReadFile returns the record for a named file, inlining content for
	// text-like extensions. Returns nil when no file matches.
	ReadFile(ctx context.Context, chatID int64, name string) (*FileRecord, error)

	// ListChats returns the ids of all chats with a directory under the
	// storage root.
	ListChats(ctx context.Context) ([]int64, error)

	// ChatDir returns the chat's directory under the storage root,
	// creating it if necessary.
	ChatDir(chatID int64) (string, error)

	// MediaDir returns the chat's subdirectory for one media kind,
	// creating it if necessary.
	MediaDir(chatID int64, kind string) (string, error)
}

// fileStore implements Store on top of a plain directory tree:
// <root>/chats/<chatID>/messages.jsonl and <root>/chats/<chatID>/files/...
type fileStore struct {
	root   string
	logger *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New creates a Store rooted at the given directory.
func New(root string, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &fileStore{
		root:   root,
		logger: logger.With("component", "store"),
		locks:  make(map[int64]*sync.Mutex),
	}
}

// chatLock returns the mutex serializing appends for one chat. Appends to
// different chats are fully independent.
func (s *fileStore) chatLock(chatID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[chatID] = l
	}
	return l
}

func (s *fileStore) ChatDir(chatID int64) (string, error) {
	dir := filepath.Join(s.root, "chats", strconv.FormatInt(chatID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create chat directory %s: %w", dir, err)
	}
	return dir, nil
}

func (s *fileStore) logPath(chatID int64) string {
	return filepath.Join(s.root, "chats", strconv.FormatInt(chatID, 10), logFileName)
}

// Append writes one JSON-encoded record per line to the chat's log file.
func (s *fileStore) Append(ctx context.Context, msg *Message) error {
	if msg == nil {
		return fmt.Errorf("cannot append nil message")
	}
	if msg.ChatID == 0 {
		return fmt.Errorf("message must have a non-zero chat_id")
	}
	if msg.Timestamp.IsZero() {
		return fmt.Errorf("message must have a non-zero timestamp")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before append: %w", err)
	}

	if _, err := s.ChatDir(msg.ChatID); err != nil {
		return err
	}

	line, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message record: %w", err)
	}

	lock := s.chatLock(msg.ChatID)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.OpenFile(s.logPath(msg.ChatID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open chat log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append to chat log: %w", err)
	}

	s.logger.DebugContext(ctx, "Appended message record", "chat_id", msg.ChatID, "kind", msg.Kind)
	return nil
}

// History reads the full log and returns the trailing 'limit' records.
func (s *fileStore) History(ctx context.Context, chatID int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before history read: %w", err)
	}

	f, err := os.Open(s.logPath(chatID))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WarnContext(ctx, "Chat log unreadable, treating as empty", "chat_id", chatID, "error", err)
		}
		return []Message{}, nil
	}
	defer f.Close()

	var msgs []Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var m Message
		if err := json.Unmarshal(line, &m); err != nil {
			// A torn or corrupt line is skipped rather than failing the read.
			s.logger.WarnContext(ctx, "Skipping malformed log line", "chat_id", chatID, "error", err)
			continue
		}
		msgs = append(msgs, m)
	}
	if err := scanner.Err(); err != nil {
		s.logger.WarnContext(ctx, "Error scanning chat log, returning partial history", "chat_id", chatID, "error", err)
	}

	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

// UserContext composes recent history with a fresh inventory scan.
func (s *fileStore) UserContext(ctx context.Context, chatID int64, limit int) (*UserContext, error) {
	msgs, err := s.History(ctx, chatID, limit)
	if err != nil {
		return nil, err
	}
	files, err := s.ListFiles(ctx, chatID, "")
	if err != nil {
		return nil, err
	}
	return &UserContext{
		ChatID:   chatID,
		Messages: msgs,
		Files:    files,
	}, nil
}
