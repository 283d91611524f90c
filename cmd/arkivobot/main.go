// Package main contains the entrypoint for the arkivobot ingestion daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/edgard/arkivobot/internal/bot"
	"github.com/edgard/arkivobot/internal/bot/tasks"
	"github.com/edgard/arkivobot/internal/config"
	"github.com/edgard/arkivobot/internal/cursor"
	"github.com/edgard/arkivobot/internal/delivery"
	"github.com/edgard/arkivobot/internal/logger"
	"github.com/edgard/arkivobot/internal/media"
	"github.com/edgard/arkivobot/internal/poller"
	"github.com/edgard/arkivobot/internal/service"
	"github.com/edgard/arkivobot/internal/store"
	"github.com/edgard/arkivobot/internal/telegram"
	"github.com/edgard/arkivobot/internal/transcribe"
	"github.com/edgard/arkivobot/internal/vision"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all components, starts the daemon, and handles graceful
// shutdown. Only startup misconfiguration is fatal; once the pipeline
// runs, every failure degrades internally.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	tg, err := telegram.New(cfg.Telegram.Token, log)
	if err != nil {
		log.Error("Failed to create Telegram client", "error", err)
		return 1
	}
	me, err := tg.Me(ctx)
	if err != nil {
		log.Error("Failed to verify Telegram credential", "error", err)
		return 1
	}
	log.Info("Telegram credential verified", "bot_id", me.ID, "bot_username", me.Username)

	st := store.New(cfg.Storage.Root, log)
	cursorStore := cursor.NewStore(filepath.Join(cfg.Storage.Root, "cursor.json"), log)

	transcriber := transcribe.NewClient(transcribe.Config{
		APIKey:       cfg.Transcription.APIKey,
		BaseURL:      cfg.Transcription.BaseURL,
		Language:     cfg.Transcription.Language,
		PollInterval: cfg.Transcription.PollInterval,
		MaxAttempts:  cfg.Transcription.MaxAttempts,
	}, log)
	if !transcriber.Configured() {
		log.Warn("No transcription API key configured; voice messages will persist without transcripts")
	}

	describer, err := vision.NewClient(ctx, vision.Config{
		APIKey: cfg.Gemini.APIKey,
		Model:  cfg.Gemini.Model,
	}, log)
	if err != nil {
		log.Error("Failed to initialize vision client", "error", err)
		return 1
	}
	if !describer.Configured() {
		log.Warn("No Gemini API key configured; photos will persist without descriptions")
	}

	acquirer := media.New(tg, st, cfg.Transcription.FFmpegPath, log)
	p := poller.New(tg, cursorStore, st, acquirer, transcriber, describer, cfg.Telegram.PollTimeout, log)

	dlv := delivery.New(tg, st, delivery.Config{
		MaxAttempts: cfg.Delivery.MaxAttempts,
		BackoffUnit: cfg.Delivery.BackoffUnit,
		Pacing:      cfg.Delivery.Pacing,
		SenderLabel: cfg.Delivery.SenderLabel,
	}, log)

	svc := service.New(service.Deps{
		Logger:   log,
		Store:    st,
		Poller:   p,
		Delivery: dlv,
	})

	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  st,
		Config: cfg,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	app := bot.NewBot(log, cfg, svc, sched)

	log.Info("Starting arkivobot...")
	runErr := app.Run(ctx)
	log.Info("Run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
