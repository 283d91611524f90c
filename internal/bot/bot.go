// Package bot implements lifecycle management and component orchestration
// for the arkivobot ingestion daemon: the dedicated poll loop plus the
// maintenance scheduler, under one errgroup.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/arkivobot/internal/config"
	"github.com/edgard/arkivobot/internal/service"
)

// Bot wires the long-running components together.
type Bot struct {
	logger    *slog.Logger
	cfg       *config.Config
	svc       *service.Service
	scheduler *Scheduler
}

// NewBot creates the orchestrator.
func NewBot(logger *slog.Logger, cfg *config.Config, svc *service.Service, scheduler *Scheduler) *Bot {
	return &Bot{
		logger:    logger.With("component", "orchestrator"),
		cfg:       cfg,
		svc:       svc,
		scheduler: scheduler,
	}
}

// Run starts the poll loop and the scheduler, blocking until the context
// is cancelled or a component fails to start.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting poll loop", "interval", b.cfg.Telegram.PollInterval)
		b.pollLoop(gCtx)
		b.logger.Info("Poll loop stopped.")
		return nil
	})

	g.Go(func() error {
		if err := b.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")
		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Orchestrator stopped gracefully.")
	return nil
}

// pollLoop runs poll cycles back to back with a short pause in between;
// the long-poll wait inside each cycle already supplies idle time when
// there is no traffic. Nothing a cycle does can abort the loop.
func (b *Bot) pollLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		res := b.svc.CheckMessages(ctx)
		if len(res.Messages) > 0 {
			b.logger.Info("Poll cycle appended records", "count", len(res.Messages), "cursor", res.Cursor)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(b.cfg.Telegram.PollInterval):
		}
	}
}
