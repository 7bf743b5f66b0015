package handler

import (
	"github.com/go-telegram/bot"
	"github.com/set-night/apexinspect/internal/config"
	"github.com/set-night/apexinspect/internal/service"
	"github.com/set-night/apexinspect/internal/telegram"
)

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot      *bot.Bot
	cfg      *config.Config
	orch     *service.Orchestrator
	tgLogger *telegram.TelegramLogger
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot          *bot.Bot
	Cfg          *config.Config
	Orchestrator *service.Orchestrator
	TgLogger     *telegram.TelegramLogger
}

func New(deps Deps) *Handler {
	return &Handler{
		bot:      deps.Bot,
		cfg:      deps.Cfg,
		orch:     deps.Orchestrator,
		tgLogger: deps.TgLogger,
	}
}
