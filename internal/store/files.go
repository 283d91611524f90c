package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// MediaKinds are the subdirectory names holding downloaded binaries,
// in the order inventories are reported.
var MediaKinds = []string{"voice", "documents", "images"}

// textExtensions are the file extensions ReadFile will inline.
var textExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".csv":  true,
	".json": true,
	".log":  true,
	".yaml": true,
	".yml":  true,
	".xml":  true,
	".html": true,
}

const maxInlineBytes = 64 * 1024

// ListChats scans the storage root for chat directories.
func (s *fileStore) ListChats(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before chat listing: %w", err)
	}
	entries, err := os.ReadDir(filepath.Join(s.root, "chats"))
	if err != nil {
		if os.IsNotExist(err) {
			return []int64{}, nil
		}
		return nil, fmt.Errorf("failed to list chat directories: %w", err)
	}
	ids := []int64{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// MediaDir returns the chat's subdirectory for one media kind, creating it
// if necessary.
func (s *fileStore) MediaDir(chatID int64, kind string) (string, error) {
	dir := filepath.Join(s.root, "chats", strconv.FormatInt(chatID, 10), "files", kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create media directory %s: %w", dir, err)
	}
	return dir, nil
}

// ListFiles enumerates the chat's media subdirectories. A missing
// subdirectory contributes zero files rather than an error.
func (s *fileStore) ListFiles(ctx context.Context, chatID int64, kind string) ([]FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before file listing: %w", err)
	}

	kinds := MediaKinds
	if kind != "" {
		kinds = []string{kind}
	}

	records := []FileRecord{}
	base := filepath.Join(s.root, "chats", strconv.FormatInt(chatID, 10), "files")
	for _, k := range kinds {
		dir := filepath.Join(base, k)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				s.logger.WarnContext(ctx, "Media directory unreadable, skipping", "chat_id", chatID, "kind", k, "error", err)
			}
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			records = append(records, FileRecord{
				Name:      e.Name(),
				Kind:      k,
				Path:      filepath.Join(dir, e.Name()),
				Size:      info.Size(),
				CreatedAt: info.ModTime(),
			})
		}
	}
	return records, nil
}

// SearchFiles filters ListFiles by a case-insensitive substring match on
// the file name.
func (s *fileStore) SearchFiles(ctx context.Context, chatID int64, query string) ([]FileRecord, error) {
	all, err := s.ListFiles(ctx, chatID, "")
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	matches := []FileRecord{}
	for _, r := range all {
		if strings.Contains(strings.ToLower(r.Name), needle) {
			matches = append(matches, r)
		}
	}
	return matches, nil
}

// ReadFile finds a file by exact name across the chat's media
// subdirectories. For text-like extensions the content is inlined
// (capped); otherwise only metadata is returned. A nil record means the
// name did not match anything.
func (s *fileStore) ReadFile(ctx context.Context, chatID int64, name string) (*FileRecord, error) {
	all, err := s.ListFiles(ctx, chatID, "")
	if err != nil {
		return nil, err
	}
	for _, r := range all {
		if r.Name != name {
			continue
		}
		if textExtensions[strings.ToLower(filepath.Ext(r.Name))] {
			data, err := os.ReadFile(r.Path)
			if err != nil {
				s.logger.WarnContext(ctx, "Failed to inline file content", "chat_id", chatID, "name", name, "error", err)
			} else {
				if len(data) > maxInlineBytes {
					data = data[:maxInlineBytes]
				}
				r.Content = string(data)
			}
		}
		return &r, nil
	}
	return nil, nil
}
