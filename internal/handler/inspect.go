package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/apexinspect/internal/domain"
	tg "github.com/set-night/apexinspect/internal/telegram"
)

const processingText = "⚙️ PROCESSING VISUAL DATA..."

// isOperatorError reports errors caused by operator input rather than by the system.
func isOperatorError(err error) bool {
	for _, target := range []error{
		domain.ErrNoImage,
		domain.ErrTurnInProgress,
		domain.ErrEmptyInput,
		domain.ErrUnknownMode,
		domain.ErrUnsupportedImage,
		domain.ErrSessionNotFound,
		tg.ErrFileTooLarge,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (h *Handler) handleText(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.submit(ctx, b, update.Message.Chat.ID, update.Message.Text)
}

// submit runs one analysis turn and renders the reply with its metrics line.
func (h *Handler) submit(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	stopTyping := tg.StartTyping(ctx, b, chatID)
	defer stopTyping()

	status, _ := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: processingText})
	clearStatus := func() {
		if status != nil {
			b.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: status.ID})
		}
	}

	reply, err := h.orch.Submit(ctx, text)
	clearStatus()
	if err != nil {
		h.reportError(ctx, b, chatID, err, "submit")
		return
	}

	if err := tg.SendLongMessage(ctx, b, chatID, reply.Content, nil); err != nil {
		slog.Error("send analysis", "error", err, "chat_id", chatID)
		return
	}
	if reply.Usage != nil {
		tg.SendPlain(ctx, b, chatID, metricsLine(*reply.Usage), nil)
	}

	if snap, err := h.orch.Sync(ctx); err == nil {
		h.tgLogger.LogTurn(snap.Session, reply.Usage)
	}
}

// metricsLine renders the per-answer telemetry shown under each analysis.
func metricsLine(u domain.UsageMetrics) string {
	return fmt.Sprintf("🪙 %d TOKENS | ⏱ %.2fs | ⚡ %.2f T/s", u.TotalTokens, u.Latency, u.Throughput)
}

// handleImage binds an uploaded photo to the active session. A caption is
// treated as the first question about it.
func (h *Handler) handleImage(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	chatID := msg.Chat.ID

	fileID := ""
	if len(msg.Photo) > 0 {
		fileID = msg.Photo[len(msg.Photo)-1].FileID
	} else {
		fileID = msg.Document.FileID
	}

	stop := tg.StartAction(ctx, b, chatID, models.ChatActionUploadPhoto)
	data, err := tg.DownloadFile(ctx, b, fileID)
	if err != nil {
		stop()
		h.reportError(ctx, b, chatID, err, "download image")
		return
	}

	sess, err := h.orch.UploadImage(ctx, data)
	stop()
	if err != nil {
		h.reportError(ctx, b, chatID, err, "upload image")
		return
	}

	tg.SendPlain(ctx, b, chatID, fmt.Sprintf("📷 Image loaded into \"%s\".\nProtocol: %s\n\nDescribe what to inspect.", sess.Title, sess.Mode), nil)

	if caption := strings.TrimSpace(msg.Caption); caption != "" {
		h.submit(ctx, b, chatID, caption)
	}
}
