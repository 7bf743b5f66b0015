package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/set-night/apexinspect/internal/config"
	"github.com/set-night/apexinspect/internal/domain"
)

// TelegramLogger mirrors notable events into topics of a Telegram log chat.
// Every method is a no-op when the chat or the topic is not configured.
type TelegramLogger struct {
	bot *bot.Bot
	cfg *config.Config
}

func NewTelegramLogger(cfg *config.Config) *TelegramLogger {
	return &TelegramLogger{cfg: cfg}
}

// Attach sets the bot used for sending. The logger is silent until then,
// which lets middlewares hold it before the bot exists.
func (l *TelegramLogger) Attach(b *bot.Bot) {
	l.bot = b
}

type LogType string

const (
	LogTypeError   LogType = "error"
	LogTypeSession LogType = "session"
)

func (l *TelegramLogger) Log(logType LogType, message string) {
	if l == nil || l.bot == nil || l.cfg.LogTelegramChatID == 0 {
		return
	}

	topicID := l.topicID(logType)
	if topicID == 0 {
		return
	}

	if len([]rune(message)) > config.MaxTelegramMessageLen {
		message = string([]rune(message)[:config.MaxTelegramMessageLen-20]) + "\n\n... (truncated)"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := l.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          l.cfg.LogTelegramChatID,
		Text:            message,
		MessageThreadID: topicID,
	})
	if err != nil {
		slog.Error("failed to send telegram log", "type", logType, "error", err)
	}
}

func (l *TelegramLogger) LogError(err error, where string) {
	msg := fmt.Sprintf("❌ Error\n\nContext: %s\nError: %s\nTime: %s",
		where, err.Error(), time.Now().Format("2006-01-02 15:04:05"))
	l.Log(LogTypeError, msg)
}

func (l *TelegramLogger) LogTurn(sess domain.Session, usage *domain.UsageMetrics) {
	msg := fmt.Sprintf("🔍 Analysis\n\nSession: %s\nTitle: %s\nProtocol: %s", sess.ID, sess.Title, sess.Mode)
	if usage != nil {
		msg += fmt.Sprintf("\nTokens: %d\nLatency: %.2fs", usage.TotalTokens, usage.Latency)
	}
	l.Log(LogTypeSession, msg)
}

func (l *TelegramLogger) LogDeleted(sessionID string) {
	l.Log(LogTypeSession, fmt.Sprintf("🗑 Session deleted\n\nSession: %s", sessionID))
}

func (l *TelegramLogger) topicID(logType LogType) int {
	switch logType {
	case LogTypeError:
		return l.cfg.LogTopicError
	case LogTypeSession:
		return l.cfg.LogTopicSession
	default:
		return 0
	}
}
