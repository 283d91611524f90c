// Package telegram wraps the go-telegram/bot library behind the narrow
// API surface the pipeline needs. The poller and delivery client depend on
// the API interface only, so tests can substitute fakes.
//
// The library drives getUpdates only through its own handler loop, which
// would hide the cursor from us; the long-poll fetch therefore goes to the
// Bot API HTTP endpoint directly, while sends, file resolution, and
// reactions use the library's typed methods.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const defaultAPIBase = "https://api.telegram.org"

// API is the subset of the Telegram Bot API used by the pipeline.
type API interface {
	// GetUpdates issues one long-poll request for updates with id >= offset,
	// holding the request server-side for up to 'timeout'.
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]*models.Update, error)

	// ResolveFileURL turns a file id into a fetchable download URL.
	ResolveFileURL(ctx context.Context, fileID string) (string, error)

	SendMessage(ctx context.Context, chatID int64, text string) (*models.Message, error)
	SendVoice(ctx context.Context, chatID int64, filename string, data io.Reader) error
	SendDocument(ctx context.Context, chatID int64, filename string, data io.Reader) error
	SetReaction(ctx context.Context, chatID int64, messageID int, emoji string) error
	SendTyping(ctx context.Context, chatID int64) error
}

// Client implements API on top of a *bot.Bot instance plus a direct HTTP
// client for the long-poll fetch.
type Client struct {
	bot        *bot.Bot
	token      string
	apiBase    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithAPIBase points the client at a different Bot API server.
func WithAPIBase(base string) Option {
	return func(c *Client) {
		c.apiBase = strings.TrimRight(base, "/")
	}
}

// New creates the production Telegram client. It fails only on an empty
// token or one rejected by the library.
func New(token string, logger *slog.Logger, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		token:   token,
		apiBase: defaultAPIBase,
		// No client-level timeout; each request carries its own deadline
		// sized to the long-poll wait.
		httpClient: &http.Client{},
		logger:     logger.With("component", "telegram"),
	}
	for _, opt := range opts {
		opt(c)
	}

	b, err := bot.New(token, bot.WithSkipGetMe(), bot.WithServerURL(c.apiBase))
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	c.bot = b

	c.logger.Info("Telegram client created")
	return c, nil
}

// Me returns the authenticated bot account, verifying the credential.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	me, err := c.bot.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot info: %w", err)
	}
	return me, nil
}

// getUpdatesEnvelope is the wire response for the raw getUpdates call.
type getUpdatesEnvelope struct {
	OK          bool             `json:"ok"`
	Result      []*models.Update `json:"result"`
	Description string           `json:"description"`
}

func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]*models.Update, error) {
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}

	url := fmt.Sprintf("%s/bot%s/getUpdates?offset=%d&timeout=%d", c.apiBase, c.token, offset, secs)

	// The request blocks server-side for up to 'timeout'; allow a little
	// slack before the client gives up on the connection itself.
	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create getUpdates request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("getUpdates failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read getUpdates response: %w", err)
	}

	var env getUpdatesEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode getUpdates response (status %d): %w", resp.StatusCode, err)
	}
	if !env.OK {
		return nil, fmt.Errorf("getUpdates rejected (status %d): %s", resp.StatusCode, env.Description)
	}
	return env.Result, nil
}

func (c *Client) ResolveFileURL(ctx context.Context, fileID string) (string, error) {
	if fileID == "" {
		return "", fmt.Errorf("empty file id")
	}
	f, err := c.bot.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("getFile failed: %w", err)
	}
	if f.FilePath == "" {
		return "", fmt.Errorf("getFile returned empty file path for %s", fileID)
	}
	return c.bot.FileDownloadLink(f), nil
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (*models.Message, error) {
	sent, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return nil, fmt.Errorf("sendMessage failed: %w", err)
	}
	return sent, nil
}

func (c *Client) SendVoice(ctx context.Context, chatID int64, filename string, data io.Reader) error {
	_, err := c.bot.SendVoice(ctx, &bot.SendVoiceParams{
		ChatID: chatID,
		Voice:  &models.InputFileUpload{Filename: filename, Data: data},
	})
	if err != nil {
		return fmt.Errorf("sendVoice failed: %w", err)
	}
	return nil
}

func (c *Client) SendDocument(ctx context.Context, chatID int64, filename string, data io.Reader) error {
	_, err := c.bot.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:   chatID,
		Document: &models.InputFileUpload{Filename: filename, Data: data},
	})
	if err != nil {
		return fmt.Errorf("sendDocument failed: %w", err)
	}
	return nil
}

func (c *Client) SetReaction(ctx context.Context, chatID int64, messageID int, emoji string) error {
	_, err := c.bot.SetMessageReaction(ctx, &bot.SetMessageReactionParams{
		ChatID:    chatID,
		MessageID: messageID,
		Reaction: []models.ReactionType{
			{
				Type:              models.ReactionTypeTypeEmoji,
				ReactionTypeEmoji: &models.ReactionTypeEmoji{Type: "emoji", Emoji: emoji},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("setMessageReaction failed: %w", err)
	}
	return nil
}

func (c *Client) SendTyping(ctx context.Context, chatID int64) error {
	_, err := c.bot.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	})
	if err != nil {
		return fmt.Errorf("sendChatAction failed: %w", err)
	}
	return nil
}
