package middleware

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type ctxKey string

const OperatorKey ctxKey = "operator"

// OperatorID returns the Telegram id of the operator behind the update, or 0.
func OperatorID(ctx context.Context) int64 {
	id, _ := ctx.Value(OperatorKey).(int64)
	return id
}

// Operator drops every update that does not come from a private chat with an
// allowed operator. The bot drives a single shared inspection workspace, so
// group chats are never served.
func Operator(allowed func(telegramID int64) bool) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			var from *models.User
			var chatType models.ChatType

			switch {
			case update.Message != nil:
				from = update.Message.From
				chatType = update.Message.Chat.Type
			case update.CallbackQuery != nil:
				from = &update.CallbackQuery.From
				if msg := update.CallbackQuery.Message.Message; msg != nil {
					chatType = msg.Chat.Type
				}
			}

			if from == nil || chatType != models.ChatTypePrivate {
				return
			}
			if !allowed(from.ID) {
				slog.Warn("update from unknown operator dropped", "user_id", from.ID, "username", from.Username)
				return
			}

			next(context.WithValue(ctx, OperatorKey, from.ID), b, update)
		}
	}
}
