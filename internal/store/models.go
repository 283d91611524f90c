package store

import "time"

// Kind identifies what a persisted record represents. Inbound records carry
// the payload kind of the originating Telegram message; outbound records are
// tagged KindSent so sent traffic shows up in the same per-chat history.
type Kind string

const (
	KindText     Kind = "text"
	KindVoice    Kind = "voice"
	KindDocument Kind = "document"
	KindPhoto    Kind = "photo"
	KindSent     Kind = "sent"
)

// Message is the normalized, persisted representation of one inbound or
// outbound chat event. Records are append-only and never mutated after they
// are written to a chat log.
type Message struct {
	ChatID    int64     `json:"chat_id"`
	MessageID *int64    `json:"message_id"`
	From      string    `json:"from"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text"`

	// Kind-specific fields, present only when the kind produced them.
	Transcription string `json:"transcription,omitempty"`
	Description   string `json:"description,omitempty"`
	FileName      string `json:"file_name,omitempty"`
	FilePath      string `json:"file_path,omitempty"`
	FileSize      int64  `json:"file_size,omitempty"`
	Duration      int    `json:"duration,omitempty"`
}

// FileRecord describes one downloaded media file. It is derived by scanning
// the chat's media subdirectories on demand and is never stored itself.
type FileRecord struct {
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`

	// Content is filled by ReadFile for text-like files only.
	Content string `json:"content,omitempty"`
}

// UserContext is the composed per-chat view: recent history plus the
// current file inventory. Computed on request, never persisted.
type UserContext struct {
	ChatID   int64        `json:"chat_id"`
	Messages []Message    `json:"messages"`
	Files    []FileRecord `json:"files"`
}
