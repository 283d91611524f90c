// Package service exposes the pipeline's operations to the calling
// dispatch layer. Every method returns a definite payload; failures are
// encoded in the result, never raised across this boundary.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/edgard/arkivobot/internal/delivery"
	"github.com/edgard/arkivobot/internal/poller"
	"github.com/edgard/arkivobot/internal/store"
)

// Deps carries everything the operations need.
type Deps struct {
	Logger   *slog.Logger
	Store    store.Store
	Poller   *poller.Poller
	Delivery *delivery.Client
}

// Service is the operation surface consumed by the dispatch layer.
type Service struct {
	deps Deps
	log  *slog.Logger
}

// New creates the service facade.
func New(deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{deps: deps, log: log.With("component", "service")}
}

// SendResult reports one outbound operation.
type SendResult struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// MultiSendResult reports a paced multi-message send.
type MultiSendResult struct {
	Sent     int    `json:"sent"`
	Failed   int    `json:"failed"`
	Outcomes []bool `json:"outcomes"`
}

// CheckResult reports one poll cycle.
type CheckResult struct {
	Cursor   int64           `json:"cursor"`
	Messages []store.Message `json:"messages"`
}

// FileContentResult wraps ReadFile with an explicit found flag.
type FileContentResult struct {
	Found  bool              `json:"found"`
	Detail string            `json:"detail,omitempty"`
	File   *store.FileRecord `json:"file,omitempty"`
}

// CheckMessages triggers one poll cycle and returns the newly appended
// records.
func (s *Service) CheckMessages(ctx context.Context) CheckResult {
	msgs := s.deps.Poller.Poll(ctx)
	if msgs == nil {
		msgs = []store.Message{}
	}
	return CheckResult{Cursor: s.deps.Poller.Offset(), Messages: msgs}
}

// SendText delivers one text message.
func (s *Service) SendText(ctx context.Context, chatID int64, text string) SendResult {
	if text == "" {
		return SendResult{OK: false, Detail: "message text is empty"}
	}
	if s.deps.Delivery.SendMessage(ctx, chatID, text) {
		return SendResult{OK: true, Detail: "message sent"}
	}
	return SendResult{OK: false, Detail: "message delivery failed after retries"}
}

// SendMultiple delivers several texts in order, waiting 'delay' between
// items; zero means the delivery client's configured pacing.
func (s *Service) SendMultiple(ctx context.Context, chatID int64, texts []string, delay time.Duration) MultiSendResult {
	outcomes := s.deps.Delivery.SendMultiple(ctx, chatID, texts, delay)
	res := MultiSendResult{Outcomes: outcomes}
	for _, ok := range outcomes {
		if ok {
			res.Sent++
		} else {
			res.Failed++
		}
	}
	return res
}

// SendFile delivers a document from the local filesystem.
func (s *Service) SendFile(ctx context.Context, chatID int64, path string) SendResult {
	if s.deps.Delivery.SendDocument(ctx, chatID, path) {
		return SendResult{OK: true, Detail: "document sent"}
	}
	return SendResult{OK: false, Detail: "document delivery failed (missing, oversized, or retries exhausted)"}
}

// SendVoice delivers a voice file.
func (s *Service) SendVoice(ctx context.Context, chatID int64, path string) SendResult {
	if s.deps.Delivery.SendVoice(ctx, chatID, path) {
		return SendResult{OK: true, Detail: "voice message sent"}
	}
	return SendResult{OK: false, Detail: "voice delivery failed"}
}

// SetReaction sets an emoji reaction on a message, best-effort.
func (s *Service) SetReaction(ctx context.Context, chatID int64, messageID int, emoji string) SendResult {
	if s.deps.Delivery.SetReaction(ctx, chatID, messageID, emoji) {
		return SendResult{OK: true, Detail: "reaction set"}
	}
	return SendResult{OK: false, Detail: "reaction failed"}
}

// GetHistory returns the most recent records for a chat, oldest-first.
func (s *Service) GetHistory(ctx context.Context, chatID int64, limit int) []store.Message {
	msgs, err := s.deps.Store.History(ctx, chatID, limit)
	if err != nil {
		s.log.ErrorContext(ctx, "History read failed", "chat_id", chatID, "error", err)
		return []store.Message{}
	}
	return msgs
}

// GetUserContext composes recent history with the file inventory.
func (s *Service) GetUserContext(ctx context.Context, chatID int64, limit int) store.UserContext {
	uc, err := s.deps.Store.UserContext(ctx, chatID, limit)
	if err != nil || uc == nil {
		s.log.ErrorContext(ctx, "User context read failed", "chat_id", chatID, "error", err)
		return store.UserContext{ChatID: chatID, Messages: []store.Message{}, Files: []store.FileRecord{}}
	}
	return *uc
}

// ListFiles enumerates a chat's downloaded files, optionally by kind.
func (s *Service) ListFiles(ctx context.Context, chatID int64, kind string) []store.FileRecord {
	files, err := s.deps.Store.ListFiles(ctx, chatID, kind)
	if err != nil {
		s.log.ErrorContext(ctx, "File listing failed", "chat_id", chatID, "kind", kind, "error", err)
		return []store.FileRecord{}
	}
	return files
}

// SearchFiles filters the inventory by a case-insensitive name substring.
func (s *Service) SearchFiles(ctx context.Context, chatID int64, query string) []store.FileRecord {
	files, err := s.deps.Store.SearchFiles(ctx, chatID, query)
	if err != nil {
		s.log.ErrorContext(ctx, "File search failed", "chat_id", chatID, "query", query, "error", err)
		return []store.FileRecord{}
	}
	return files
}

// GetFileContent returns a named file's metadata, inlining text content
// where the format allows it.
func (s *Service) GetFileContent(ctx context.Context, chatID int64, name string) FileContentResult {
	rec, err := s.deps.Store.ReadFile(ctx, chatID, name)
	if err != nil {
		s.log.ErrorContext(ctx, "File read failed", "chat_id", chatID, "name", name, "error", err)
		return FileContentResult{Found: false, Detail: fmt.Sprintf("failed to read %q", name)}
	}
	if rec == nil {
		return FileContentResult{Found: false, Detail: fmt.Sprintf("no file named %q", name)}
	}
	return FileContentResult{Found: true, File: rec}
}
