// Package media acquires message attachments: it resolves a Telegram file
// id to a download URL, streams the bytes into the chat's media directory,
// and optionally normalizes audio with ffmpeg before transcription.
//
// Every failure here is soft. The poll loop persists a degraded record and
// keeps going; nothing in this package can stall ingestion.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/edgard/arkivobot/internal/store"
	"github.com/edgard/arkivobot/internal/telegram"
)

const (
	downloadTimeout  = 30 * time.Second
	maxDownloadBytes = 50 * 1024 * 1024
	transcodeTimeout = 60 * time.Second
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Acquirer downloads and prepares media files. Files it writes belong to
// the filesystem afterwards; the acquirer keeps no bookkeeping of its own.
type Acquirer struct {
	api        telegram.API
	store      store.Store
	httpClient *http.Client
	ffmpegPath string
	logger     *slog.Logger
}

// New creates an Acquirer. ffmpegPath may be empty, in which case "ffmpeg"
// is looked up on PATH at transcode time.
func New(api telegram.API, st store.Store, ffmpegPath string, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Acquirer{
		api:        api,
		store:      st,
		httpClient: &http.Client{Timeout: downloadTimeout},
		ffmpegPath: ffmpegPath,
		logger:     logger.With("component", "media"),
	}
}

// FileName builds the deterministic local name for a message's attachment:
// voice_<id>.ogg, photo_<id>.jpg, or <id>_<original name> for documents.
func FileName(kind store.Kind, messageID int, original string) string {
	switch kind {
	case store.KindVoice:
		return fmt.Sprintf("voice_%d.ogg", messageID)
	case store.KindPhoto:
		return fmt.Sprintf("photo_%d.jpg", messageID)
	case store.KindDocument:
		name := unsafeNameChars.ReplaceAllString(original, "_")
		if name == "" || name == "_" {
			name = "file"
		}
		return fmt.Sprintf("%d_%s", messageID, name)
	default:
		return fmt.Sprintf("file_%d", messageID)
	}
}

// KindDir maps a message kind to its media subdirectory name.
func KindDir(kind store.Kind) string {
	switch kind {
	case store.KindVoice:
		return "voice"
	case store.KindDocument:
		return "documents"
	case store.KindPhoto:
		return "images"
	default:
		return "documents"
	}
}

// Download resolves the remote file id and streams it into the chat's
// per-kind subdirectory. Returns the local path, or an error the caller is
// expected to degrade on.
func (a *Acquirer) Download(ctx context.Context, chatID int64, messageID int, kind store.Kind, fileID, originalName string) (string, error) {
	dlCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	url, err := a.api.ResolveFileURL(dlCtx, fileID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve file %s: %w", fileID, err)
	}

	dir, err := a.store.MediaDir(chatID, KindDir(kind))
	if err != nil {
		return "", err
	}
	dst := filepath.Join(dir, FileName(kind, messageID, originalName))

	req, err := http.NewRequestWithContext(dlCtx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("unexpected status %d downloading file: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create media file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(resp.Body, maxDownloadBytes))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		// A partial file is worse than none.
		if rmErr := os.Remove(dst); rmErr != nil {
			a.logger.WarnContext(ctx, "Failed to remove partial download", "path", dst, "error", rmErr)
		}
		return "", fmt.Errorf("failed to write media file: %w", err)
	}

	a.logger.InfoContext(ctx, "Downloaded media file", "chat_id", chatID, "kind", kind, "path", dst, "bytes", n)
	return dst, nil
}

// Transcode converts an audio file to mp3 for the transcription service.
// Best-effort: any failure returns the input path unchanged so
// transcription and storage proceed with whatever format is available.
func (a *Acquirer) Transcode(ctx context.Context, inputPath string) string {
	outputPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".mp3"
	if outputPath == inputPath {
		outputPath = inputPath + ".mp3"
	}

	tcCtx, cancel := context.WithTimeout(ctx, transcodeTimeout)
	defer cancel()

	cmd := exec.CommandContext(tcCtx, a.ffmpegPath, "-y", "-i", inputPath, outputPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		a.logger.WarnContext(ctx, "Transcode failed, keeping original format",
			"input", inputPath, "error", err, "output", strings.TrimSpace(string(out)))
		return inputPath
	}

	a.logger.DebugContext(ctx, "Transcoded audio", "input", inputPath, "output", outputPath)
	return outputPath
}
