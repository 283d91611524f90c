package tasks

import "context"

// newInventoryStatsTask logs per-chat file inventory totals, giving the
// operator a periodic view of storage growth without a metrics stack.
func newInventoryStatsTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "inventory_stats")

	return func(ctx context.Context) error {
		chats, err := deps.Store.ListChats(ctx)
		if err != nil {
			return err
		}

		var totalFiles int
		var totalBytes int64
		for _, chatID := range chats {
			files, err := deps.Store.ListFiles(ctx, chatID, "")
			if err != nil {
				log.WarnContext(ctx, "Failed to list files", "chat_id", chatID, "error", err)
				continue
			}
			var chatBytes int64
			for _, f := range files {
				chatBytes += f.Size
			}
			totalFiles += len(files)
			totalBytes += chatBytes
			log.DebugContext(ctx, "Chat inventory", "chat_id", chatID, "files", len(files), "bytes", chatBytes)
		}

		log.InfoContext(ctx, "Inventory totals", "chats", len(chats), "files", totalFiles, "bytes", totalBytes)
		return nil
	}
}
