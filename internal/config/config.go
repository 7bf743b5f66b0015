package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Core
	BotToken    string `env:"BOT_TOKEN"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Inference endpoint. The key is only checked when a request is attempted.
	InferenceURL         string        `env:"INFERENCE_API_URL" envDefault:"https://platform.qubrid.com/api/v1/qubridai/multimodal/chat"`
	InferenceKey         string        `env:"INFERENCE_API_KEY"`
	InferenceModel       string        `env:"INFERENCE_MODEL" envDefault:"Qwen/Qwen3-VL-30B-A3B-Instruct"`
	InferenceMaxTokens   int           `env:"INFERENCE_MAX_TOKENS" envDefault:"2048"`
	InferenceTemperature float64       `env:"INFERENCE_TEMPERATURE" envDefault:"0.6"`
	InferenceTimeout     time.Duration `env:"INFERENCE_TIMEOUT" envDefault:"90s"`

	// Image storage: "local" or "minio"
	ImageStore string `env:"IMAGE_STORE" envDefault:"local"`
	ImageDir   string `env:"IMAGE_DIR" envDefault:"data/images"`

	MinIOEndpoint  string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY"`
	MinIOBucket    string `env:"MINIO_BUCKET" envDefault:"inspections"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`

	// Operators allowed to talk to the bot. Empty means anyone.
	OperatorIDs []int64 `env:"OPERATOR_IDS" envSeparator:","`

	// Telegram logging
	LogTelegramChatID int64 `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError     int   `env:"LOG_TOPIC_ERROR"`
	LogTopicSession   int   `env:"LOG_TOPIC_SESSION"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file and then parses the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ImageStore != ImageStoreLocal && cfg.ImageStore != ImageStoreMinIO {
		return nil, fmt.Errorf("parse config: unknown IMAGE_STORE %q", cfg.ImageStore)
	}
	return cfg, nil
}

func (c *Config) IsOperator(telegramID int64) bool {
	if len(c.OperatorIDs) == 0 {
		return true
	}
	for _, id := range c.OperatorIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
