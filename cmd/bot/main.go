package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/apexinspect"
	"github.com/set-night/apexinspect/internal/config"
	"github.com/set-night/apexinspect/internal/handler"
	"github.com/set-night/apexinspect/internal/middleware"
	"github.com/set-night/apexinspect/internal/repository"
	"github.com/set-night/apexinspect/internal/service"
	"github.com/set-night/apexinspect/internal/storage"
	"github.com/set-night/apexinspect/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if cfg.BotToken == "" {
		slog.Error("BOT_TOKEN is required")
		os.Exit(1)
	}
	if cfg.InferenceKey == "" {
		slog.Warn("INFERENCE_API_KEY is not set, analysis requests will fail until it is configured")
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	migrationsFS, err := fs.Sub(apexinspect.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	images, err := storage.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open image store", "error", err, "store", cfg.ImageStore)
		os.Exit(1)
	}

	sessionService := service.NewSessionService(pool, repository.New(pool), images)
	inference := service.NewInferenceService(service.InferenceConfig{
		URL:         cfg.InferenceURL,
		APIKey:      cfg.InferenceKey,
		Model:       cfg.InferenceModel,
		MaxTokens:   cfg.InferenceMaxTokens,
		Temperature: cfg.InferenceTemperature,
		Timeout:     cfg.InferenceTimeout,
	})
	orch := service.NewOrchestrator(service.OrchestratorDeps{
		Store:   sessionService,
		Chat:    inference,
		Images:  images,
		Timeout: cfg.InferenceTimeout,
	})
	if err := orch.Start(ctx); err != nil {
		slog.Error("failed to start inspection session", "error", err)
		os.Exit(1)
	}

	// Handler pointer for use in default handler closure
	var h *handler.Handler
	tgLogger := telegram.NewTelegramLogger(cfg)

	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(tgLogger),
			middleware.Logging(),
			middleware.Operator(cfg.IsOperator),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h != nil {
				h.HandleMessage(ctx, b, update)
			}
		}),
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}

	tgLogger.Attach(b)

	h = handler.New(handler.Deps{
		Bot:          b,
		Cfg:          cfg,
		Orchestrator: orch,
		TgLogger:     tgLogger,
	})
	h.Register()

	slog.Info("starting bot",
		"username", me.Username,
		"id", me.ID,
		"session_id", orch.ActiveID(),
		"image_store", cfg.ImageStore,
		"model", cfg.InferenceModel,
	)
	b.Start(ctx)

	slog.Info("bot stopped gracefully")
}
