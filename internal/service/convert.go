package service

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/set-night/apexinspect/internal/domain"
	"github.com/set-night/apexinspect/internal/protocol"
	"github.com/set-night/apexinspect/internal/repository"
)

// pgTimestamptzToTime converts pgtype.Timestamptz to time.Time.
func pgTimestamptzToTime(ts pgtype.Timestamptz) time.Time {
	if ts.Valid {
		return ts.Time
	}
	return time.Time{}
}

// pgTextToString converts a nullable text column to a string, NULL being "".
func pgTextToString(t pgtype.Text) string {
	if t.Valid {
		return t.String
	}
	return ""
}

// encodeUsage serialises metrics for the usage_data column; nil stays NULL.
func encodeUsage(u *domain.UsageMetrics) (pgtype.Text, error) {
	if u == nil {
		return pgtype.Text{}, nil
	}
	b, err := json.Marshal(u)
	if err != nil {
		return pgtype.Text{}, err
	}
	return pgtype.Text{String: string(b), Valid: true}, nil
}

// decodeUsage parses the usage_data column. Unreadable data is logged and
// dropped so one bad row does not hide the rest of the history.
func decodeUsage(messageID int64, t pgtype.Text) *domain.UsageMetrics {
	if !t.Valid || t.String == "" {
		return nil
	}
	var u domain.UsageMetrics
	if err := json.Unmarshal([]byte(t.String), &u); err != nil {
		slog.Warn("decode usage data", "error", err, "message_id", messageID)
		return nil
	}
	return &u
}

func rowToSession(row repository.Session) *domain.Session {
	return &domain.Session{
		ID:        row.ID,
		Title:     row.Title,
		ImagePath: pgTextToString(row.ImagePath),
		Mode:      protocol.Mode(row.Mode),
		CreatedAt: pgTimestamptzToTime(row.CreatedAt),
	}
}

func rowToMessage(row repository.Message) domain.Message {
	return domain.Message{
		ID:        row.ID,
		SessionID: row.SessionID,
		Role:      domain.Role(row.Role),
		Content:   row.Content,
		Usage:     decodeUsage(row.ID, row.UsageData),
		CreatedAt: pgTimestamptzToTime(row.CreatedAt),
	}
}
