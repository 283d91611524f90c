// Package config provides configuration loading and validation for the
// arkivobot application: YAML file, ARKIVO_* environment variables, and
// defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines all application settings.
type Config struct {
	Logger        LoggerConfig        `mapstructure:"logger"`
	Telegram      TelegramConfig      `mapstructure:"telegram"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Gemini        GeminiConfig        `mapstructure:"gemini"`
	Delivery      DeliveryConfig      `mapstructure:"delivery"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

type TelegramConfig struct {
	// Token is the only setting without which the process cannot start.
	Token string `mapstructure:"token" validate:"required"`

	// PollTimeout is the server-side long-poll wait for getUpdates.
	PollTimeout time.Duration `mapstructure:"poll_timeout" validate:"min=1s,max=50s"`

	// PollInterval is the pause between poll cycles in daemon mode; the
	// long-poll wait already provides most of the idle time.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"min=100ms,max=10m"`
}

type StorageConfig struct {
	// Root holds the cursor file and the per-chat directories.
	Root string `mapstructure:"root" validate:"required"`

	// HistoryLimit is the default record count for history reads.
	HistoryLimit int `mapstructure:"history_limit" validate:"min=1,max=1000"`

	// RetentionDays bounds how long downloaded media is kept; 0 disables
	// pruning.
	RetentionDays int `mapstructure:"retention_days" validate:"min=0,max=3650"`
}

type TranscriptionConfig struct {
	// APIKey may be empty: voice messages then persist with an explicit
	// unavailable diagnostic instead of a transcript.
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url" validate:"omitempty,url"`
	Language     string        `mapstructure:"language"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"min=100ms,max=1m"`
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"min=1,max=300"`
	FFmpegPath   string        `mapstructure:"ffmpeg_path"`
}

type GeminiConfig struct {
	// APIKey may be empty: photo descriptions are then skipped.
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type DeliveryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1,max=10"`
	BackoffUnit time.Duration `mapstructure:"backoff_unit" validate:"min=10ms,max=30s"`
	Pacing      time.Duration `mapstructure:"pacing" validate:"min=0,max=30s"`
	SenderLabel string        `mapstructure:"sender_label"`
}

// TaskConfig configures one scheduled maintenance task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// LoadConfig reads the configuration file (optional), applies ARKIVO_*
// environment overrides and defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("ARKIVO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about. Keys
	// without defaults (secrets above all) must be bound explicitly or an
	// env-only deployment cannot supply them.
	for _, key := range []string{
		"telegram.token",
		"transcription.api_key",
		"transcription.language",
		"transcription.ffmpeg_path",
		"gemini.api_key",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment key %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env and defaults still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	v.SetDefault("telegram.poll_timeout", 10*time.Second)
	v.SetDefault("telegram.poll_interval", time.Second)

	v.SetDefault("storage.root", "data")
	v.SetDefault("storage.history_limit", 50)
	v.SetDefault("storage.retention_days", 0)

	v.SetDefault("transcription.base_url", "https://api.assemblyai.com/v2")
	v.SetDefault("transcription.poll_interval", 2*time.Second)
	v.SetDefault("transcription.max_attempts", 30)

	v.SetDefault("gemini.model", "gemini-2.0-flash")

	v.SetDefault("delivery.max_attempts", 3)
	v.SetDefault("delivery.backoff_unit", time.Second)
	v.SetDefault("delivery.pacing", 500*time.Millisecond)
	v.SetDefault("delivery.sender_label", "bot")

	v.SetDefault("scheduler.tasks", map[string]TaskConfig{
		"media_retention": {Enabled: false, Schedule: "0 0 4 * * *"},
		"inventory_stats": {Enabled: false, Schedule: "0 0 * * * *"},
	})
}
