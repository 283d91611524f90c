package media_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/arkivobot/internal/media"
	"github.com/edgard/arkivobot/internal/store"
)

// fakeResolver serves ResolveFileURL from a fixed map; everything else is
// unused by the acquirer.
type fakeResolver struct {
	urls map[string]string
}

func (f *fakeResolver) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]*models.Update, error) {
	return nil, nil
}

func (f *fakeResolver) ResolveFileURL(ctx context.Context, fileID string) (string, error) {
	url, ok := f.urls[fileID]
	if !ok {
		return "", errors.New("unknown file id")
	}
	return url, nil
}

func (f *fakeResolver) SendMessage(ctx context.Context, chatID int64, text string) (*models.Message, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeResolver) SendVoice(ctx context.Context, chatID int64, filename string, data io.Reader) error {
	return errors.New("not implemented")
}

func (f *fakeResolver) SendDocument(ctx context.Context, chatID int64, filename string, data io.Reader) error {
	return errors.New("not implemented")
}

func (f *fakeResolver) SetReaction(ctx context.Context, chatID int64, messageID int, emoji string) error {
	return errors.New("not implemented")
}

func (f *fakeResolver) SendTyping(ctx context.Context, chatID int64) error {
	return nil
}

func TestFileName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		kind     store.Kind
		id       int
		original string
		want     string
	}{
		{name: "voice", kind: store.KindVoice, id: 101, want: "voice_101.ogg"},
		{name: "photo", kind: store.KindPhoto, id: 102, want: "photo_102.jpg"},
		{name: "document keeps safe name", kind: store.KindDocument, id: 103, original: "report-v2.pdf", want: "103_report-v2.pdf"},
		{name: "document strips unsafe chars", kind: store.KindDocument, id: 104, original: "my file/..\\x.txt", want: "104_my_file_.._x.txt"},
		{name: "document empty name", kind: store.KindDocument, id: 105, original: "", want: "105_file"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := media.FileName(tc.kind, tc.id, tc.original); got != tc.want {
				t.Errorf("FileName = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestKindDir(t *testing.T) {
	t.Parallel()

	pairs := map[store.Kind]string{
		store.KindVoice:    "voice",
		store.KindPhoto:    "images",
		store.KindDocument: "documents",
	}
	for kind, want := range pairs {
		if got := media.KindDir(kind); got != want {
			t.Errorf("KindDir(%s) = %q, want %q", kind, got, want)
		}
	}
}

func TestDownload(t *testing.T) {
	t.Parallel()

	payload := []byte("fake voice payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	t.Cleanup(srv.Close)

	st := store.New(t.TempDir(), nil)
	api := &fakeResolver{urls: map[string]string{"file-abc": srv.URL + "/file/voice.oga"}}
	a := media.New(api, st, "", nil)

	path, err := a.Download(context.Background(), 42, 101, store.KindVoice, "file-abc", "")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("downloaded content = %q, want %q", data, payload)
	}

	files, err := st.ListFiles(context.Background(), 42, "voice")
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(files) != 1 || files[0].Name != "voice_101.ogg" {
		t.Errorf("inventory = %+v, want one voice_101.ogg", files)
	}
}

func TestDownloadResolveFailure(t *testing.T) {
	t.Parallel()

	st := store.New(t.TempDir(), nil)
	a := media.New(&fakeResolver{}, st, "", nil)

	if _, err := a.Download(context.Background(), 1, 1, store.KindVoice, "missing", ""); err == nil {
		t.Error("Download succeeded for unresolvable file id, want error")
	}
}

func TestDownloadHTTPErrorLeavesNoFile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	st := store.New(t.TempDir(), nil)
	api := &fakeResolver{urls: map[string]string{"file-x": srv.URL + "/file"}}
	a := media.New(api, st, "", nil)

	if _, err := a.Download(context.Background(), 5, 9, store.KindDocument, "file-x", "doc.pdf"); err == nil {
		t.Fatal("Download succeeded on 404, want error")
	}

	files, err := st.ListFiles(context.Background(), 5, "")
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("inventory after failed download = %+v, want empty", files)
	}
}

func TestTranscodeFailureReturnsInput(t *testing.T) {
	t.Parallel()

	st := store.New(t.TempDir(), nil)
	// Point at a binary that cannot exist so the transcode always fails.
	a := media.New(&fakeResolver{}, st, "/nonexistent/ffmpeg", nil)

	input := t.TempDir() + "/voice_1.ogg"
	if err := os.WriteFile(input, []byte("opus"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	if got := a.Transcode(context.Background(), input); got != input {
		t.Errorf("Transcode = %q, want the input path back on failure", got)
	}
}
