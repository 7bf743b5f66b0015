package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/apexinspect/internal/protocol"
	tg "github.com/set-night/apexinspect/internal/telegram"
)

func (h *Handler) handleMode(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	snap, err := h.orch.Sync(ctx)
	if err != nil {
		h.reportError(ctx, b, chatID, err, "mode")
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        "🧭 Select analysis protocol:",
		ReplyMarkup: modeKeyboard(snap.Session.Mode),
	})
}

// modeKeyboard lists the catalog; buttons carry the catalog index since
// protocol names contain spaces.
func modeKeyboard(current protocol.Mode) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton
	for i, m := range protocol.Modes() {
		label := string(m)
		if m == current {
			label = "✅ " + label
		}
		rows = append(rows, tg.ButtonRow(tg.InlineButton(label, cbMode+strconv.Itoa(i))))
	}
	return tg.InlineKeyboard(rows...)
}

func modeFromCallback(data string) (protocol.Mode, bool) {
	i, err := strconv.Atoi(strings.TrimPrefix(data, cbMode))
	modes := protocol.Modes()
	if err != nil || i < 0 || i >= len(modes) {
		return "", false
	}
	return modes[i], true
}

func (h *Handler) handleModeSelect(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})
	chatID, messageID := callbackTarget(update)

	mode, ok := modeFromCallback(update.CallbackQuery.Data)
	if !ok {
		return
	}
	if err := h.orch.SetMode(ctx, mode); err != nil {
		h.reportError(ctx, b, chatID, err, "set mode")
		return
	}

	if messageID != 0 {
		b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:      chatID,
			MessageID:   messageID,
			Text:        fmt.Sprintf("🧭 Protocol set: %s", mode),
			ReplyMarkup: modeKeyboard(mode),
		})
	}
}

func (h *Handler) handleFocus(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	focus := commandArgs(update.Message.Text)
	h.orch.SetFocus(focus)

	if focus == "" {
		tg.SendPlain(ctx, b, chatID, "🎯 Focus cleared.", nil)
		return
	}
	tg.SendPlain(ctx, b, chatID, "🎯 Focus set. It is appended to every analysis:\n\n"+focus, nil)
}
