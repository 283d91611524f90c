// Package transcribe implements the client for an asynchronous
// transcription service: audio is uploaded, a transcription job is
// submitted, and job status is polled until a terminal state.
//
// Every outcome is represented as returned text - transcript, diagnostic,
// or unavailability notice - so callers can persist something for every
// voice message. Transcribe never returns an error.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

const (
	defaultBaseURL      = "https://api.assemblyai.com/v2"
	defaultPollInterval = 2 * time.Second
	defaultMaxAttempts  = 30
)

// Job statuses reported by the service.
const (
	statusQueued     = "queued"
	statusProcessing = "processing"
	statusCompleted  = "completed"
	statusError      = "error"
)

// Unavailable is returned when no API key is configured. The literal is
// persisted on voice records, so it stays stable.
const Unavailable = "[transcription unavailable: no API key configured]"

// Config holds transcription client settings.
type Config struct {
	APIKey       string
	BaseURL      string
	Language     string
	PollInterval time.Duration
	MaxAttempts  int
}

// Client talks to the transcription service.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a transcription client. An empty API key is not an
// error: the client stays usable and reports Unavailable for every request.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.With("component", "transcribe"),
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// Transcribe uploads the audio file, submits a job, and polls until the
// job completes, errors, or the attempt budget runs out. All outcomes come
// back as text.
func (c *Client) Transcribe(ctx context.Context, audioPath string) string {
	if !c.Configured() {
		return Unavailable
	}

	data, err := os.ReadFile(audioPath)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to read audio file", "path", audioPath, "error", err)
		return fmt.Sprintf("[transcription error: cannot read audio file: %v]", err)
	}

	uploadURL, err := c.upload(ctx, data)
	if err != nil {
		c.logger.WarnContext(ctx, "Audio upload failed", "path", audioPath, "error", err)
		return fmt.Sprintf("[transcription error: upload failed: %v]", err)
	}

	jobID, err := c.submit(ctx, uploadURL)
	if err != nil {
		c.logger.WarnContext(ctx, "Transcription job submission failed", "error", err)
		return fmt.Sprintf("[transcription error: submit failed: %v]", err)
	}

	started := time.Now()
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		job, err := c.poll(ctx, jobID)
		if err != nil {
			c.logger.WarnContext(ctx, "Transcription poll failed", "job_id", jobID, "attempt", attempt, "error", err)
		} else {
			switch job.Status {
			case statusCompleted:
				if job.Text == "" {
					return "[empty transcription]"
				}
				return job.Text
			case statusError:
				return fmt.Sprintf("[transcription error: %s]", job.Error)
			case statusQueued, statusProcessing:
				// Keep waiting.
			default:
				c.logger.WarnContext(ctx, "Unknown transcription job status", "job_id", jobID, "status", job.Status)
			}
		}

		// No point sleeping once the attempt budget is spent.
		if attempt == c.cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Sprintf("[transcription cancelled: %v]", ctx.Err())
		case <-time.After(c.cfg.PollInterval):
		}
	}

	return fmt.Sprintf("[transcription timed out after %s]", time.Since(started).Round(time.Millisecond))
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

// upload pushes raw audio bytes and returns the service-side reference URL.
func (c *Client) upload(ctx context.Context, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/upload", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var out uploadResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", fmt.Errorf("upload response missing upload_url")
	}
	return out.UploadURL, nil
}

type submitRequest struct {
	AudioURL     string `json:"audio_url"`
	LanguageCode string `json:"language_code,omitempty"`
}

type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// submit creates a transcription job for a previously uploaded file.
func (c *Client) submit(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(submitRequest{
		AudioURL:     audioURL,
		LanguageCode: c.cfg.Language,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/transcript", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create submit request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	var out jobResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("submit response missing job id")
	}
	return out.ID, nil
}

// poll fetches the current job state.
func (c *Client) poll(ctx context.Context, jobID string) (*jobResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/transcript/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)

	var out jobResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do runs the request and decodes the JSON response with shared error
// handling.
func (c *Client) do(req *http.Request, response any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("API error with status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
