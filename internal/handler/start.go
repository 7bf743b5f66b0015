package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/apexinspect/internal/service"
	tg "github.com/set-night/apexinspect/internal/telegram"
)

const helpText = "📋 Commands:\n" +
	"/new — Start a new inspection\n" +
	"/mode — Choose the analysis protocol\n" +
	"/focus <text> — Extra instructions for every analysis (empty clears)\n" +
	"/sessions — Inspection archive\n" +
	"/rename <title> — Rename the current inspection\n" +
	"/export — Download the PDF report\n" +
	"/delete — Delete the current inspection\n\n" +
	"Send a component photo, then describe what to inspect."

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	snap, err := h.orch.Sync(ctx)
	if err != nil {
		h.reportError(ctx, b, chatID, err, "start")
		return
	}

	text := "🏭 Apex Industrial AI — visual inspection assistant\n\n" + statusText(snap) + "\n\n" + helpText
	tg.SendPlain(ctx, b, chatID, text, nil)
}

func (h *Handler) handleNew(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	if _, err := h.orch.NewInspection(ctx); err != nil {
		h.reportError(ctx, b, chatID, err, "new inspection")
		return
	}
	h.sendStatus(ctx, b, chatID, "🆕 New inspection started.")
}

func (h *Handler) sendStatus(ctx context.Context, b *bot.Bot, chatID int64, header string) {
	snap, err := h.orch.Sync(ctx)
	if err != nil {
		h.reportError(ctx, b, chatID, err, "status")
		return
	}
	tg.SendPlain(ctx, b, chatID, header+"\n\n"+statusText(snap), nil)
}

// statusText summarises the active session the way the operator sees it.
func statusText(snap *service.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📁 %s\n", snap.Session.Title)
	fmt.Fprintf(&sb, "🧭 Protocol: %s\n", snap.Session.Mode)
	if snap.HasImage {
		sb.WriteString("📷 Image: loaded\n")
	} else {
		sb.WriteString("📷 Image: none, upload a photo to begin\n")
	}
	if snap.Focus != "" {
		fmt.Fprintf(&sb, "🎯 Focus: %s\n", snap.Focus)
	}
	fmt.Fprintf(&sb, "💬 Messages: %d", len(snap.Messages))
	return sb.String()
}

// reportError logs err, mirrors unexpected failures to the log chat and tells
// the operator in flat text.
func (h *Handler) reportError(ctx context.Context, b *bot.Bot, chatID int64, err error, where string) {
	if isOperatorError(err) {
		slog.Debug("operator error", "error", err, "where", where)
	} else {
		slog.Error("handler failed", "error", err, "where", where)
		h.tgLogger.LogError(err, where)
	}
	text := service.UserMessage(err)
	if errors.Is(err, tg.ErrFileTooLarge) {
		text = "⚠️ File too large. Telegram lets bots download up to 20 MB."
	}
	tg.SendPlain(ctx, b, chatID, text, nil)
}
