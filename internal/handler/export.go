package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/apexinspect/internal/config"
	tg "github.com/set-night/apexinspect/internal/telegram"
)

func (h *Handler) handleExport(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	stop := tg.StartAction(ctx, b, chatID, models.ChatActionUploadDocument)
	defer stop()

	pdf, err := h.orch.Report(ctx)
	if err != nil {
		h.reportError(ctx, b, chatID, err, "export report")
		return
	}
	if err := tg.SendDocument(ctx, b, chatID, config.ReportFileName, pdf, "📄 Inspection report"); err != nil {
		h.reportError(ctx, b, chatID, err, "send report")
	}
}
