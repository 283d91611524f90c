// Package poller implements the ingestion side of the pipeline: one
// long-poll cycle against the Telegram API, crash-safe cursor advancement,
// and normalization of each update into a persisted context record.
package poller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-telegram/bot/models"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/arkivobot/internal/cursor"
	"github.com/edgard/arkivobot/internal/media"
	"github.com/edgard/arkivobot/internal/store"
	"github.com/edgard/arkivobot/internal/telegram"
	"github.com/edgard/arkivobot/internal/vision"
)

const (
	defaultPollTimeout = 10 * time.Second
	mediaConcurrency   = 4
)

// Transcriber turns an audio file into text. All outcomes, including
// unavailability and timeouts, come back as the returned string.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) string
}

// Poller fetches updates and fans them through normalization into the
// context store. The in-memory offset mirrors the persisted cursor.
type Poller struct {
	api         telegram.API
	cursorStore *cursor.Store
	store       store.Store
	acquirer    *media.Acquirer
	transcriber Transcriber
	describer   vision.Describer
	logger      *slog.Logger
	pollTimeout time.Duration

	offset int64
}

// New creates a Poller. The cursor is loaded once at startup; afterwards
// the in-memory offset is authoritative and mirrored to disk after every
// successful fetch.
func New(
	api telegram.API,
	cursorStore *cursor.Store,
	st store.Store,
	acquirer *media.Acquirer,
	transcriber Transcriber,
	describer vision.Describer,
	pollTimeout time.Duration,
	logger *slog.Logger,
) *Poller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	return &Poller{
		api:         api,
		cursorStore: cursorStore,
		store:       st,
		acquirer:    acquirer,
		transcriber: transcriber,
		describer:   describer,
		logger:      logger.With("component", "poller"),
		pollTimeout: pollTimeout,
		offset:      cursorStore.Load(),
	}
}

// Offset returns the current in-memory cursor value.
func (p *Poller) Offset() int64 {
	return p.offset
}

// Poll runs one fetch-and-process cycle and returns the records it
// appended, in log order. Transport failures are recoverable: they yield
// an empty result and leave the cursor untouched.
//
// The cursor is persisted as soon as the batch is fetched, before any
// record is appended. A crash in between redelivers nothing; a crash
// before the save redelivers the whole batch, and duplicate appends are
// harmless by construction of the append-only log.
func (p *Poller) Poll(ctx context.Context) []store.Message {
	updates, err := p.api.GetUpdates(ctx, p.offset+1, p.pollTimeout)
	if err != nil {
		p.logger.WarnContext(ctx, "getUpdates failed, will retry next cycle", "offset", p.offset, "error", err)
		return nil
	}

	if len(updates) == 0 {
		// Nothing new; refresh the checked-at timestamp only.
		if err := p.cursorStore.Save(p.offset); err != nil {
			p.logger.WarnContext(ctx, "Failed to persist cursor timestamp", "error", err)
		}
		return nil
	}

	sort.Slice(updates, func(i, j int) bool { return updates[i].ID < updates[j].ID })

	p.offset = updates[len(updates)-1].ID
	if err := p.cursorStore.Save(p.offset); err != nil {
		// Not fatal: the batch is simply reprocessed after a restart.
		p.logger.WarnContext(ctx, "Failed to persist cursor, batch may replay", "offset", p.offset, "error", err)
	}
	p.logger.InfoContext(ctx, "Fetched update batch", "count", len(updates), "cursor", p.offset)

	records := p.normalizeBatch(ctx, updates)

	appended := make([]store.Message, 0, len(records))
	for i := range records {
		if err := p.store.Append(ctx, &records[i]); err != nil {
			p.logger.ErrorContext(ctx, "Failed to append record", "chat_id", records[i].ChatID, "error", err)
			continue
		}
		appended = append(appended, records[i])
	}
	return appended
}

// normalizeBatch converts updates into records. Media acquisition for
// independent updates runs concurrently; results keep batch order so the
// caller can append them in arrival sequence.
func (p *Poller) normalizeBatch(ctx context.Context, updates []*models.Update) []store.Message {
	type slot struct {
		msg *models.Message
		rec *store.Message
	}

	slots := make([]slot, 0, len(updates))
	for _, upd := range updates {
		msg := upd.Message
		if msg == nil {
			p.logger.DebugContext(ctx, "Skipping non-message update", "update_id", upd.ID)
			continue
		}
		rec := baseRecord(msg)
		if rec == nil {
			p.logger.DebugContext(ctx, "Skipping empty message", "update_id", upd.ID, "chat_id", msg.Chat.ID)
			continue
		}
		slots = append(slots, slot{msg: msg, rec: rec})
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(mediaConcurrency)
	for i := range slots {
		s := &slots[i]
		switch s.rec.Kind {
		case store.KindVoice:
			g.Go(func() error {
				p.acquireVoice(gCtx, s.msg, s.rec)
				return nil
			})
		case store.KindPhoto:
			g.Go(func() error {
				p.acquirePhoto(gCtx, s.msg, s.rec)
				return nil
			})
		case store.KindDocument:
			g.Go(func() error {
				p.acquireDocument(gCtx, s.msg, s.rec)
				return nil
			})
		case store.KindText, store.KindSent:
			// No acquisition stage.
		}
	}
	// Workers only report soft failures through the records themselves.
	_ = g.Wait()

	records := make([]store.Message, len(slots))
	for i, s := range slots {
		records[i] = *s.rec
	}
	return records
}

// baseRecord maps one message onto a normalized record via an exhaustive
// payload-kind switch. A nil result means the message carries nothing
// worth persisting.
func baseRecord(msg *models.Message) *store.Message {
	id := int64(msg.ID)
	rec := &store.Message{
		ChatID:    msg.Chat.ID,
		MessageID: &id,
		From:      senderLabel(msg.From),
		Timestamp: time.Unix(int64(msg.Date), 0).UTC(),
	}

	switch {
	case msg.Voice != nil:
		rec.Kind = store.KindVoice
		rec.Text = "[Voice message]"
		rec.Duration = msg.Voice.Duration
	case len(msg.Photo) > 0:
		rec.Kind = store.KindPhoto
		rec.Text = "[Photo]"
		if msg.Caption != "" {
			rec.Text = msg.Caption
		}
	case msg.Document != nil:
		rec.Kind = store.KindDocument
		name := msg.Document.FileName
		if name == "" {
			name = "unknown"
		}
		rec.Text = fmt.Sprintf("[File: %s]", name)
		rec.FileName = name
		rec.FileSize = msg.Document.FileSize
	case msg.Sticker != nil:
		rec.Kind = store.KindText
		rec.Text = fmt.Sprintf("[Sticker: %s]", msg.Sticker.Emoji)
	case msg.Text != "":
		rec.Kind = store.KindText
		rec.Text = msg.Text
	default:
		return nil
	}
	return rec
}

func senderLabel(u *models.User) string {
	if u == nil {
		return "Unknown"
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return "Unknown"
}

// acquireVoice runs the download -> transcode -> transcribe pipeline. Each
// stage degrades independently: a failed download keeps the placeholder
// text and raw metadata, a failed transcode keeps the original format, and
// transcription always produces some text.
func (p *Poller) acquireVoice(ctx context.Context, msg *models.Message, rec *store.Message) {
	path, err := p.acquirer.Download(ctx, rec.ChatID, msg.ID, store.KindVoice, msg.Voice.FileID, "")
	if err != nil {
		p.logger.WarnContext(ctx, "Voice download failed, persisting raw metadata", "chat_id", rec.ChatID, "error", err)
		return
	}
	rec.FilePath = path
	rec.FileName = fileBase(path)
	rec.FileSize = fileSize(path)

	audioPath := p.acquirer.Transcode(ctx, path)
	rec.Transcription = p.transcriber.Transcribe(ctx, audioPath)
}

func (p *Poller) acquirePhoto(ctx context.Context, msg *models.Message, rec *store.Message) {
	best := largestPhoto(msg.Photo)
	path, err := p.acquirer.Download(ctx, rec.ChatID, msg.ID, store.KindPhoto, best.FileID, "")
	if err != nil {
		p.logger.WarnContext(ctx, "Photo download failed, persisting raw metadata", "chat_id", rec.ChatID, "error", err)
		return
	}
	rec.FilePath = path
	rec.FileName = fileBase(path)
	rec.FileSize = fileSize(path)

	if p.describer == nil || !p.describer.Configured() {
		return
	}
	data, err := readCapped(path)
	if err != nil {
		p.logger.WarnContext(ctx, "Failed to read photo for description", "path", path, "error", err)
		return
	}
	desc, err := p.describer.Describe(ctx, http.DetectContentType(data), data)
	if err != nil {
		p.logger.WarnContext(ctx, "Photo description failed", "chat_id", rec.ChatID, "error", err)
		return
	}
	rec.Description = desc
}

func (p *Poller) acquireDocument(ctx context.Context, msg *models.Message, rec *store.Message) {
	path, err := p.acquirer.Download(ctx, rec.ChatID, msg.ID, store.KindDocument, msg.Document.FileID, msg.Document.FileName)
	if err != nil {
		p.logger.WarnContext(ctx, "Document download failed, persisting raw metadata", "chat_id", rec.ChatID, "error", err)
		return
	}
	rec.FilePath = path
	rec.FileName = fileBase(path)
	rec.FileSize = fileSize(path)
}

func largestPhoto(sizes []models.PhotoSize) models.PhotoSize {
	best := sizes[0]
	bestArea := best.Width * best.Height
	for _, s := range sizes[1:] {
		if area := s.Width * s.Height; area > bestArea {
			best = s
			bestArea = area
		}
	}
	return best
}
