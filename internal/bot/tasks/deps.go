// Package tasks implements scheduled maintenance tasks for arkivobot:
// media retention pruning and inventory statistics logging.
package tasks

import (
	"log/slog"

	"github.com/edgard/arkivobot/internal/config"
	"github.com/edgard/arkivobot/internal/store"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  store.Store
	Config *config.Config
}
