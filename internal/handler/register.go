package handler

import (
	"context"
	"strings"
	"unicode"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	tg "github.com/set-night/apexinspect/internal/telegram"
)

const (
	cbMode          = "mode_"
	cbSwitchSession = "switch_session_"
	cbSessionsPage  = "sessions_page_"
	cbNewSession    = "new_session"
	cbDeleteCurrent = "delete_current"
)

// Register registers all command and callback handlers on the bot instance.
// Everything else reaches HandleMessage through the bot's default handler.
func (h *Handler) Register() {
	// Commands
	h.bot.RegisterHandlerMatchFunc(matchCommand("start"), h.handleStart)
	h.bot.RegisterHandlerMatchFunc(matchCommand("new"), h.handleNew)
	h.bot.RegisterHandlerMatchFunc(matchCommand("mode"), h.handleMode)
	h.bot.RegisterHandlerMatchFunc(matchCommand("focus"), h.handleFocus)
	h.bot.RegisterHandlerMatchFunc(matchCommand("sessions"), h.handleSessions)
	h.bot.RegisterHandlerMatchFunc(matchCommand("rename"), h.handleRename)
	h.bot.RegisterHandlerMatchFunc(matchCommand("delete"), h.handleDelete)
	h.bot.RegisterHandlerMatchFunc(matchCommand("export"), h.handleExport)

	// Callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbMode, bot.MatchTypePrefix, h.handleModeSelect)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbSwitchSession, bot.MatchTypePrefix, h.handleSwitchSession)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbSessionsPage, bot.MatchTypePrefix, h.handleSessionsPage)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbNewSession, bot.MatchTypeExact, h.handleNewSession)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbDeleteCurrent, bot.MatchTypeExact, h.handleDeleteCurrent)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, tg.NoopCallback, bot.MatchTypeExact, h.handleNoop)
}

// HandleMessage routes updates no command matched: uploads bind an image,
// plain text runs an analysis turn.
func (h *Handler) HandleMessage(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}

	switch {
	case len(msg.Photo) > 0 || isImageDocument(msg.Document):
		h.handleImage(ctx, b, update)
	case msg.Document != nil:
		tg.SendPlain(ctx, b, msg.Chat.ID, "⚠️ Unsupported file. Send a JPG or PNG photo.", nil)
	case strings.HasPrefix(msg.Text, "/"):
		tg.SendPlain(ctx, b, msg.Chat.ID, "Unknown command.\n\n"+helpText, nil)
	case strings.TrimSpace(msg.Text) != "":
		h.handleText(ctx, b, update)
	}
}

func isImageDocument(doc *models.Document) bool {
	return doc != nil && strings.HasPrefix(doc.MimeType, "image/")
}

// handleNoop acknowledges buttons that only display state.
func (h *Handler) handleNoop(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery != nil {
		b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: update.CallbackQuery.ID,
		})
	}
}

// callbackTarget returns the chat and message a callback button belongs to.
func callbackTarget(update *models.Update) (chatID int64, messageID int) {
	if msg := update.CallbackQuery.Message.Message; msg != nil {
		return msg.Chat.ID, msg.ID
	}
	return update.CallbackQuery.From.ID, 0
}

// matchCommand matches "/name", "/name args" and "/name@bot", but not "/namex".
func matchCommand(name string) bot.MatchFunc {
	return func(update *models.Update) bool {
		return update.Message != nil && isCommand(update.Message.Text, name)
	}
}

func isCommand(text, name string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	word, _, _ := strings.Cut(fields[0], "@")
	return word == "/"+name
}

// commandArgs returns the text after the command word.
func commandArgs(text string) string {
	text = strings.TrimSpace(text)
	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(text[i:])
}
