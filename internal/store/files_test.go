package store_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edgard/arkivobot/internal/store"
)

func writeMedia(t *testing.T, s store.Store, chatID int64, kind, name, content string) {
	t.Helper()
	dir, err := s.MediaDir(chatID, kind)
	if err != nil {
		t.Fatalf("MediaDir(%d, %s) failed: %v", chatID, kind, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestListFiles(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()

	writeMedia(t, s, 1, "voice", "voice_10.ogg", "opus")
	writeMedia(t, s, 1, "images", "photo_11.jpg", "jpeg")
	writeMedia(t, s, 1, "documents", "12_report.txt", "contents")

	all, err := s.ListFiles(ctx, 1, "")
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListFiles returned %d records, want 3", len(all))
	}

	images, err := s.ListFiles(ctx, 1, "images")
	if err != nil {
		t.Fatalf("ListFiles(images) failed: %v", err)
	}
	if len(images) != 1 || images[0].Name != "photo_11.jpg" || images[0].Kind != "images" {
		t.Errorf("ListFiles(images) = %+v, want one photo_11.jpg", images)
	}
	if images[0].Size != int64(len("jpeg")) {
		t.Errorf("Size = %d, want %d", images[0].Size, len("jpeg"))
	}
}

func TestListFilesMissingChat(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	files, err := s.ListFiles(context.Background(), 404, "")
	if err != nil {
		t.Fatalf("ListFiles on missing chat failed: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("ListFiles on missing chat = %d records, want 0", len(files))
	}
}

func TestSearchFiles(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()

	writeMedia(t, s, 2, "documents", "13_Quarterly_Report.txt", "q1")
	writeMedia(t, s, 2, "documents", "14_notes.md", "notes")
	writeMedia(t, s, 2, "voice", "voice_15.ogg", "opus")

	testCases := []struct {
		name      string
		query     string
		wantNames []string
	}{
		{name: "case insensitive match", query: "report", wantNames: []string{"13_Quarterly_Report.txt"}},
		{name: "no match", query: "missing", wantNames: nil},
		{name: "empty query matches all", query: "", wantNames: []string{"voice_15.ogg", "13_Quarterly_Report.txt", "14_notes.md"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := s.SearchFiles(ctx, 2, tc.query)
			if err != nil {
				t.Fatalf("SearchFiles failed: %v", err)
			}
			if len(got) != len(tc.wantNames) {
				t.Fatalf("SearchFiles(%q) = %d records, want %d", tc.query, len(got), len(tc.wantNames))
			}
			for _, want := range tc.wantNames {
				found := false
				for _, r := range got {
					if r.Name == want {
						found = true
					}
				}
				if !found {
					t.Errorf("SearchFiles(%q) missing %q", tc.query, want)
				}
			}
		})
	}
}

func TestReadFileInlinesTextContent(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()

	writeMedia(t, s, 3, "documents", "16_notes.txt", "inline me")
	writeMedia(t, s, 3, "images", "photo_17.jpg", "binary")

	rec, err := s.ReadFile(ctx, 3, "16_notes.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if rec == nil {
		t.Fatal("ReadFile returned nil for existing file")
	}
	if rec.Content != "inline me" {
		t.Errorf("Content = %q, want %q", rec.Content, "inline me")
	}

	jpg, err := s.ReadFile(ctx, 3, "photo_17.jpg")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if jpg == nil {
		t.Fatal("ReadFile returned nil for existing jpg")
	}
	if jpg.Content != "" {
		t.Errorf("binary file content inlined: %q", jpg.Content)
	}
}

func TestReadFileMissingReturnsNil(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	rec, err := s.ReadFile(context.Background(), 3, "nope.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if rec != nil {
		t.Errorf("ReadFile for missing name = %+v, want nil", rec)
	}
}

func TestReadFileCapsInlinedContent(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	big := strings.Repeat("a", 70*1024)
	writeMedia(t, s, 4, "documents", "18_big.log", big)

	rec, err := s.ReadFile(context.Background(), 4, "18_big.log")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if rec == nil {
		t.Fatal("ReadFile returned nil")
	}
	if len(rec.Content) != 64*1024 {
		t.Errorf("inlined content length = %d, want %d", len(rec.Content), 64*1024)
	}
}

func TestListChats(t *testing.T) {
	t.Parallel()

	s, root := newTestStore(t)
	ctx := context.Background()

	if _, err := s.ChatDir(100); err != nil {
		t.Fatalf("ChatDir failed: %v", err)
	}
	if _, err := s.ChatDir(-200); err != nil {
		t.Fatalf("ChatDir failed: %v", err)
	}
	// Non-numeric entries are not chats and must be skipped.
	if err := os.MkdirAll(filepath.Join(root, "chats", "junk"), 0o755); err != nil {
		t.Fatalf("failed to create junk dir: %v", err)
	}

	ids, err := s.ListChats(ctx)
	if err != nil {
		t.Fatalf("ListChats failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ListChats = %v, want 2 ids", ids)
	}
	seen := map[int64]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[100] || !seen[-200] {
		t.Errorf("ListChats = %v, want {100, -200}", ids)
	}
}
