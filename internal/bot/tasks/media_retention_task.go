package tasks

import (
	"context"
	"os"
	"time"
)

// newMediaRetentionTask prunes downloaded media files older than the
// configured retention window. Message logs are never touched; only the
// derived media inventory shrinks.
func newMediaRetentionTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "media_retention")

	return func(ctx context.Context) error {
		days := deps.Config.Storage.RetentionDays
		if days <= 0 {
			log.DebugContext(ctx, "Retention disabled, nothing to prune")
			return nil
		}
		cutoff := time.Now().AddDate(0, 0, -days)

		chats, err := deps.Store.ListChats(ctx)
		if err != nil {
			return err
		}

		pruned := 0
		for _, chatID := range chats {
			files, err := deps.Store.ListFiles(ctx, chatID, "")
			if err != nil {
				log.WarnContext(ctx, "Failed to list files for pruning", "chat_id", chatID, "error", err)
				continue
			}
			for _, f := range files {
				if f.CreatedAt.After(cutoff) {
					continue
				}
				if err := os.Remove(f.Path); err != nil {
					log.WarnContext(ctx, "Failed to prune media file", "path", f.Path, "error", err)
					continue
				}
				pruned++
			}
		}

		log.InfoContext(ctx, "Media retention pass finished", "pruned", pruned, "cutoff", cutoff.Format(time.RFC3339))
		return nil
	}
}
