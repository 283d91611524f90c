// Package delivery implements the outbound path to Telegram: retrying
// sends with linear backoff, a pre-flight payload size gate, paced
// multi-message delivery, and best-effort reactions.
//
// Successful text sends are mirrored into the context store as sent-kind
// records, so outbound traffic appears in the same per-chat history as
// inbound traffic.
package delivery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/edgard/arkivobot/internal/sanitize"
	"github.com/edgard/arkivobot/internal/store"
	"github.com/edgard/arkivobot/internal/telegram"
)

// MaxUploadBytes is Telegram's bot-upload payload limit.
const MaxUploadBytes = 50 * 1024 * 1024

// Config holds delivery policy knobs.
type Config struct {
	// MaxAttempts bounds every retried send. Default 3.
	MaxAttempts int
	// BackoffUnit is the linear backoff base: attempt N sleeps N*unit.
	// Default 1s.
	BackoffUnit time.Duration
	// Pacing is the delay between consecutive SendMultiple items.
	// Default 500ms.
	Pacing time.Duration
	// SenderLabel is the "from" label stamped on sent-kind records.
	SenderLabel string
}

// Client performs outbound transfers. All methods report success as a
// boolean; detail lives in the logs, not in raised errors.
type Client struct {
	api        telegram.API
	store      store.Store
	cfg        Config
	normalizer *sanitize.Normalizer
	logger     *slog.Logger
}

// New creates a delivery client with defaults filled in.
func New(api telegram.API, st store.Store, cfg Config, logger *slog.Logger) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = time.Second
	}
	if cfg.Pacing <= 0 {
		cfg.Pacing = 500 * time.Millisecond
	}
	if cfg.SenderLabel == "" {
		cfg.SenderLabel = "bot"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		api:        api,
		store:      st,
		cfg:        cfg,
		normalizer: sanitize.NewNormalizer(),
		logger:     logger.With("component", "delivery"),
	}
}

// SendMessage sends one text message, retrying transport errors and
// non-success responses identically. On success a sent-kind record is
// appended to the chat's history.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) bool {
	text = c.normalizer.Plain(text)
	c.typing(ctx, chatID)
	ok := c.withRetry(ctx, "sendMessage", chatID, func(attemptCtx context.Context) error {
		_, err := c.api.SendMessage(attemptCtx, chatID, text)
		return err
	})
	if ok {
		c.recordSent(ctx, chatID, text)
	}
	return ok
}

// SendVoice uploads a voice file as a multipart body, with the standard
// retry policy.
func (c *Client) SendVoice(ctx context.Context, chatID int64, path string) bool {
	if _, err := os.Stat(path); err != nil {
		c.logger.WarnContext(ctx, "Voice file missing, not sending", "chat_id", chatID, "path", path, "error", err)
		return false
	}
	c.typing(ctx, chatID)
	return c.withRetry(ctx, "sendVoice", chatID, func(attemptCtx context.Context) error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open voice file: %w", err)
		}
		defer f.Close()
		return c.api.SendVoice(attemptCtx, chatID, filepath.Base(path), f)
	})
}

// SendDocument validates existence and size before any network attempt;
// a violation fails immediately without consuming a retry.
func (c *Client) SendDocument(ctx context.Context, chatID int64, path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		c.logger.WarnContext(ctx, "Document missing, not sending", "chat_id", chatID, "path", path, "error", err)
		return false
	}
	if info.Size() > MaxUploadBytes {
		c.logger.WarnContext(ctx, "Document exceeds upload limit, not sending",
			"chat_id", chatID, "path", path, "size", info.Size(), "limit", MaxUploadBytes)
		return false
	}
	c.typing(ctx, chatID)
	return c.withRetry(ctx, "sendDocument", chatID, func(attemptCtx context.Context) error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open document: %w", err)
		}
		defer f.Close()
		return c.api.SendDocument(attemptCtx, chatID, filepath.Base(path), f)
	})
}

// SendMultiple sends each text in list order with 'delay' between items;
// a non-positive delay falls back to the configured pacing. A failed item
// never aborts the rest; the full list is always attempted and the
// per-item outcomes are returned.
func (c *Client) SendMultiple(ctx context.Context, chatID int64, texts []string, delay time.Duration) []bool {
	if delay <= 0 {
		delay = c.cfg.Pacing
	}
	results := make([]bool, len(texts))
	for i, text := range texts {
		if i > 0 {
			if !sleep(ctx, delay) {
				c.logger.WarnContext(ctx, "Context cancelled during paced send", "chat_id", chatID, "sent", i, "total", len(texts))
				return results
			}
		}
		results[i] = c.SendMessage(ctx, chatID, text)
	}
	return results
}

// SetReaction is deliberately single-attempt: reactions are cosmetic and
// not worth a retry storm.
func (c *Client) SetReaction(ctx context.Context, chatID int64, messageID int, emoji string) bool {
	if err := c.api.SetReaction(ctx, chatID, messageID, emoji); err != nil {
		c.logger.WarnContext(ctx, "Reaction failed", "chat_id", chatID, "message_id", messageID, "emoji", emoji, "error", err)
		return false
	}
	return true
}

// withRetry runs one send operation up to MaxAttempts times with linearly
// increasing, cancellable backoff between attempts.
func (c *Client) withRetry(ctx context.Context, op string, chatID int64, attempt func(context.Context) error) bool {
	var lastErr error
	for i := 1; i <= c.cfg.MaxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			c.logger.WarnContext(ctx, "Context cancelled, aborting send", "op", op, "chat_id", chatID, "attempt", i)
			return false
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return true
		}

		c.logger.WarnContext(ctx, "Send attempt failed", "op", op, "chat_id", chatID, "attempt", i, "max_attempts", c.cfg.MaxAttempts, "error", lastErr)
		if i < c.cfg.MaxAttempts {
			if !sleep(ctx, time.Duration(i)*c.cfg.BackoffUnit) {
				return false
			}
		}
	}

	c.logger.ErrorContext(ctx, "Send failed after all attempts", "op", op, "chat_id", chatID, "attempts", c.cfg.MaxAttempts, "error", lastErr)
	return false
}

// typing shows the chat action indicator before an outbound transfer.
// Purely cosmetic, so failures are only logged at debug level.
func (c *Client) typing(ctx context.Context, chatID int64) {
	if err := c.api.SendTyping(ctx, chatID); err != nil {
		c.logger.DebugContext(ctx, "Typing indicator failed", "chat_id", chatID, "error", err)
	}
}

func (c *Client) recordSent(ctx context.Context, chatID int64, text string) {
	rec := &store.Message{
		ChatID:    chatID,
		From:      c.cfg.SenderLabel,
		Timestamp: time.Now().UTC(),
		Kind:      store.KindSent,
		Text:      text,
	}
	if err := c.store.Append(ctx, rec); err != nil {
		// The message went out; the missing audit line is logged only.
		c.logger.ErrorContext(ctx, "Failed to append sent record", "chat_id", chatID, "error", err)
	}
}

// sleep waits for d or until the context is cancelled; it reports whether
// the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
