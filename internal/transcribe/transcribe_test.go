package transcribe_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgard/arkivobot/internal/transcribe"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voice.ogg")
	if err := os.WriteFile(path, []byte("fake opus payload"), 0o644); err != nil {
		t.Fatalf("failed to write audio fixture: %v", err)
	}
	return path
}

// newJobServer simulates the async transcription API: upload, submit, then
// a sequence of poll responses served in order (the last one repeats).
func newJobServer(t *testing.T, polls []map[string]any) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var pollCount atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/audio/1"})
	})
	mux.HandleFunc("POST /transcript", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("submit request body invalid: %v", err)
		}
		if req["audio_url"] != "https://cdn.example/audio/1" {
			t.Errorf("submit audio_url = %v, want the upload url", req["audio_url"])
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "job-1", "status": "queued"})
	})
	mux.HandleFunc("GET /transcript/job-1", func(w http.ResponseWriter, r *http.Request) {
		i := int(pollCount.Add(1)) - 1
		if i >= len(polls) {
			i = len(polls) - 1
		}
		json.NewEncoder(w).Encode(polls[i])
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &pollCount
}

func testClient(baseURL string, maxAttempts int) *transcribe.Client {
	return transcribe.NewClient(transcribe.Config{
		APIKey:       "test-key",
		BaseURL:      baseURL,
		PollInterval: time.Millisecond,
		MaxAttempts:  maxAttempts,
	}, nil)
}

func TestTranscribeWithoutAPIKey(t *testing.T) {
	t.Parallel()

	c := transcribe.NewClient(transcribe.Config{}, nil)
	if c.Configured() {
		t.Error("Configured() = true with empty key")
	}

	got := c.Transcribe(context.Background(), writeAudio(t))
	if got != transcribe.Unavailable {
		t.Errorf("Transcribe = %q, want %q", got, transcribe.Unavailable)
	}
}

func TestTranscribeCompleted(t *testing.T) {
	t.Parallel()

	srv, _ := newJobServer(t, []map[string]any{
		{"id": "job-1", "status": "processing"},
		{"id": "job-1", "status": "completed", "text": "hello from the voice note"},
	})

	got := testClient(srv.URL, 10).Transcribe(context.Background(), writeAudio(t))
	if got != "hello from the voice note" {
		t.Errorf("Transcribe = %q, want the transcript", got)
	}
}

func TestTranscribeJobError(t *testing.T) {
	t.Parallel()

	srv, _ := newJobServer(t, []map[string]any{
		{"id": "job-1", "status": "error", "error": "audio too short"},
	})

	got := testClient(srv.URL, 10).Transcribe(context.Background(), writeAudio(t))
	if got != "[transcription error: audio too short]" {
		t.Errorf("Transcribe = %q, want the job error wrapped", got)
	}
}

func TestTranscribeEmptyText(t *testing.T) {
	t.Parallel()

	srv, _ := newJobServer(t, []map[string]any{
		{"id": "job-1", "status": "completed", "text": ""},
	})

	got := testClient(srv.URL, 10).Transcribe(context.Background(), writeAudio(t))
	if got != "[empty transcription]" {
		t.Errorf("Transcribe = %q, want empty marker", got)
	}
}

func TestTranscribeTimesOutAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	srv, pollCount := newJobServer(t, []map[string]any{
		{"id": "job-1", "status": "processing"},
	})

	c := transcribe.NewClient(transcribe.Config{
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		PollInterval: 150 * time.Millisecond,
		MaxAttempts:  2,
	}, nil)

	start := time.Now()
	got := c.Transcribe(context.Background(), writeAudio(t))
	elapsed := time.Since(start)

	if !strings.HasPrefix(got, "[transcription timed out after ") {
		t.Errorf("Transcribe = %q, want timeout marker", got)
	}
	if n := pollCount.Load(); n != 2 {
		t.Errorf("poll count = %d, want 2", n)
	}
	// Two attempts mean one inter-attempt wait; a second wait after the
	// final attempt would push this past 300ms.
	if elapsed >= 2*150*time.Millisecond {
		t.Errorf("elapsed = %s, want under %s (no sleep after the final attempt)", elapsed, 300*time.Millisecond)
	}
}

func TestTranscribeMissingAudioFile(t *testing.T) {
	t.Parallel()

	c := testClient("http://127.0.0.1:0", 1)
	got := c.Transcribe(context.Background(), filepath.Join(t.TempDir(), "absent.ogg"))
	if !strings.HasPrefix(got, "[transcription error: cannot read audio file:") {
		t.Errorf("Transcribe = %q, want read error marker", got)
	}
}

func TestTranscribeUploadFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	got := testClient(srv.URL, 1).Transcribe(context.Background(), writeAudio(t))
	if !strings.HasPrefix(got, "[transcription error: upload failed:") {
		t.Errorf("Transcribe = %q, want upload error marker", got)
	}
}

func TestTranscribeCancelled(t *testing.T) {
	t.Parallel()

	srv, _ := newJobServer(t, []map[string]any{
		{"id": "job-1", "status": "processing"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	c := transcribe.NewClient(transcribe.Config{
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		PollInterval: time.Minute,
		MaxAttempts:  10,
	}, nil)

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	got := c.Transcribe(ctx, writeAudio(t))
	if !strings.HasPrefix(got, "[transcription cancelled:") {
		t.Errorf("Transcribe = %q, want cancellation marker", got)
	}
}
