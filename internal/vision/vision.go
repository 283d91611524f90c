// Package vision generates short descriptions for incoming photos using
// Google's Gemini API. The whole capability is optional: with no API key
// configured, Describe reports unconfigured and the photo record persists
// with its caption placeholder only.
package vision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"google.golang.org/genai"
)

const describeInstruction = "Describe this image in one or two factual sentences. " +
	"Mention visible text verbatim if there is any. Do not speculate about intent."

// Describer is the interface the poller depends on.
type Describer interface {
	// Configured reports whether the client can make API calls at all.
	Configured() bool

	// Describe returns a short description of the image bytes.
	Describe(ctx context.Context, mimeType string, data []byte) (string, error)
}

// Config holds Gemini client settings.
type Config struct {
	APIKey     string
	Model      string
	MaxRetries int
	RetryDelay time.Duration
}

type client struct {
	genaiClient *genai.Client
	logger      *slog.Logger
	model       string
	maxRetries  int
	retryDelay  time.Duration
}

// unconfigured satisfies Describer when no API key is present.
type unconfigured struct{}

func (unconfigured) Configured() bool { return false }
func (unconfigured) Describe(context.Context, string, []byte) (string, error) {
	return "", errors.New("vision client is not configured")
}

// NewClient creates a Describer. An empty API key yields a client whose
// Configured() is false; that is a normal deployment mode, not an error.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (Describer, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.APIKey == "" {
		return unconfigured{}, nil
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	log := logger.With("component", "vision")
	log.Info("Vision client initialized", "model", cfg.Model)
	return &client{
		genaiClient: gi,
		logger:      log,
		model:       cfg.Model,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
	}, nil
}

func (c *client) Configured() bool { return true }

func (c *client) Describe(ctx context.Context, mimeType string, data []byte) (string, error) {
	if len(data) == 0 || mimeType == "" {
		return "", fmt.Errorf("image data and MIME type are required")
	}

	contents := []*genai.Content{
		genai.NewContentFromText(describeInstruction, genai.RoleUser),
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromBytes(data, mimeType)}, genai.RoleUser),
	}

	resp, err := c.generateWithRetries(ctx, contents)
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no content")
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	return text, nil
}

// generateWithRetries retries transient 500/503 API errors with a fixed
// delay, the same policy the API itself recommends for those codes.
func (c *client) generateWithRetries(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	var err error

	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.genaiClient.Models.GenerateContent(ctx, c.model, contents, nil)
		if err == nil {
			return resp, nil
		}

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503) && i < c.maxRetries {
			c.logger.WarnContext(ctx, "Gemini call failed, retrying", "attempt", i+1, "code", apiErr.Code)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
			continue
		}
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return nil, err
}
