package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/apexinspect/internal/config"
	"github.com/set-night/apexinspect/internal/domain"
	tg "github.com/set-night/apexinspect/internal/telegram"
)

func (h *Handler) handleSessions(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendSessionsPage(ctx, b, update.Message.Chat.ID, 0, 0)
}

// sendSessionsPage renders one archive page; messageID != 0 edits in place.
func (h *Handler) sendSessionsPage(ctx context.Context, b *bot.Bot, chatID int64, page int, messageID int) {
	sessions, err := h.orch.Archive(ctx)
	if err != nil {
		h.reportError(ctx, b, chatID, err, "list sessions")
		return
	}

	text, keyboard := sessionsPage(sessions, h.orch.ActiveID(), page)

	if messageID != 0 {
		_, err = b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:      chatID,
			MessageID:   messageID,
			Text:        text,
			ReplyMarkup: keyboard,
		})
	} else {
		_, err = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      chatID,
			Text:        text,
			ReplyMarkup: keyboard,
		})
	}
	if err != nil {
		slog.Warn("send sessions page", "error", err, "chat_id", chatID)
	}
}

func sessionsPage(sessions []domain.Session, activeID string, page int) (string, *models.InlineKeyboardMarkup) {
	totalPages := (len(sessions) + config.SessionsPerPage - 1) / config.SessionsPerPage
	if totalPages == 0 {
		totalPages = 1
	}
	page = min(max(page, 0), totalPages-1)

	text := fmt.Sprintf("📂 Inspection archive (%d)", len(sessions))
	if len(sessions) == 0 {
		text += "\n\nNo saved inspections yet."
	}

	var rows [][]models.InlineKeyboardButton
	start := page * config.SessionsPerPage
	end := min(start+config.SessionsPerPage, len(sessions))
	for _, s := range sessions[start:end] {
		label := fmt.Sprintf("%s · %s · %s", s.Title, s.Mode.Short(), s.CreatedAt.Format("02.01 15:04"))
		if s.ID == activeID {
			label = "✅ " + label
		}
		rows = append(rows, tg.ButtonRow(tg.InlineButton(label, cbSwitchSession+s.ID)))
	}

	rows = append(rows, tg.ButtonRow(
		tg.InlineButton("➕ New", cbNewSession),
		tg.InlineButton("🗑 Delete current", cbDeleteCurrent),
	))
	if totalPages > 1 {
		rows = append(rows, tg.PaginationRow(page, totalPages, cbSessionsPage))
	}
	return text, tg.InlineKeyboard(rows...)
}

func (h *Handler) handleSwitchSession(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})
	chatID, messageID := callbackTarget(update)

	id := strings.TrimPrefix(update.CallbackQuery.Data, cbSwitchSession)
	snap, err := h.orch.SwitchTo(ctx, id)
	if err != nil {
		h.reportError(ctx, b, chatID, err, "switch session")
		return
	}

	h.sendSessionsPage(ctx, b, chatID, 0, messageID)
	tg.SendPlain(ctx, b, chatID, "📂 Resumed.\n\n"+statusText(snap), nil)
	if n := len(snap.Messages); n > 0 {
		if last := snap.Messages[n-1]; last.Role == domain.RoleAssistant {
			tg.SendLongMessage(ctx, b, chatID, last.Content, nil)
		}
	}
}

func (h *Handler) handleSessionsPage(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})
	chatID, messageID := callbackTarget(update)

	page, _ := strconv.Atoi(strings.TrimPrefix(update.CallbackQuery.Data, cbSessionsPage))
	h.sendSessionsPage(ctx, b, chatID, page, messageID)
}

func (h *Handler) handleNewSession(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})
	chatID, messageID := callbackTarget(update)

	if _, err := h.orch.NewInspection(ctx); err != nil {
		h.reportError(ctx, b, chatID, err, "new inspection")
		return
	}
	h.sendSessionsPage(ctx, b, chatID, 0, messageID)
	h.sendStatus(ctx, b, chatID, "🆕 New inspection started.")
}

func (h *Handler) handleDeleteCurrent(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})
	chatID, messageID := callbackTarget(update)

	h.deleteActive(ctx, b, chatID)
	h.sendSessionsPage(ctx, b, chatID, 0, messageID)
}

func (h *Handler) handleDelete(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   "🗑 Delete the current inspection with its log and image?",
		ReplyMarkup: tg.InlineKeyboard(tg.ButtonRow(
			tg.InlineButton("🗑 Delete", cbDeleteCurrent),
		)),
	})
}

func (h *Handler) deleteActive(ctx context.Context, b *bot.Bot, chatID int64) {
	old := h.orch.ActiveID()
	if _, err := h.orch.DeleteActive(ctx); err != nil {
		h.reportError(ctx, b, chatID, err, "delete session")
		return
	}
	h.tgLogger.LogDeleted(old)
	h.sendStatus(ctx, b, chatID, "🗑 Inspection deleted. A new one was started.")
}

func (h *Handler) handleRename(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	title := commandArgs(update.Message.Text)
	if title == "" {
		tg.SendPlain(ctx, b, chatID, "Usage: /rename <title>", nil)
		return
	}
	if err := h.orch.Rename(ctx, title); err != nil {
		h.reportError(ctx, b, chatID, err, "rename")
		return
	}
	tg.SendPlain(ctx, b, chatID, "✏️ Renamed to \""+title+"\".", nil)
}
