package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/set-night/apexinspect/internal/domain"
	"github.com/set-night/apexinspect/internal/protocol"
	"github.com/set-night/apexinspect/internal/repository"
	"github.com/set-night/apexinspect/internal/storage"
)

// DB is the part of *pgxpool.Pool the session store uses.
type DB interface {
	repository.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// SessionService is the durable store of sessions and their message logs.
//
// Targeted updates on a session id that does not exist affect zero rows and
// return nil; callers that need to know use GetSession first.
type SessionService struct {
	db      DB
	queries *repository.Queries
	images  storage.ImageStore
}

func NewSessionService(db DB, queries *repository.Queries, images storage.ImageStore) *SessionService {
	return &SessionService{db: db, queries: queries, images: images}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}

// inTx runs fn in one transaction. The transaction is rolled back on every
// path that does not reach Commit.
func (s *SessionService) inTx(ctx context.Context, fn func(q *repository.Queries) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	finished := false
	defer func() {
		if !finished {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				slog.Warn("rollback transaction", "error", rbErr)
			}
		}
	}()

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}
	finished = true
	return tx.Commit(ctx)
}

// CreateSession inserts the session unless the id already exists.
func (s *SessionService) CreateSession(ctx context.Context, id, title string, mode protocol.Mode) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("session id is required")
	}
	if title == "" {
		title = domain.DefaultTitle
	}
	if mode == "" {
		mode = protocol.Default
	}
	if !protocol.Valid(mode) {
		return fmt.Errorf("create session: %w: %q", domain.ErrUnknownMode, mode)
	}

	n, err := s.queries.CreateSession(ctx, repository.CreateSessionParams{
		ID:    id,
		Title: title,
		Mode:  string(mode),
	})
	if err != nil {
		return storageErr("create session", err)
	}
	if n == 0 {
		slog.Debug("session already exists", "session_id", id)
	}
	return nil
}

func (s *SessionService) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row, err := s.queries.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, storageErr("get session", err)
	}
	return rowToSession(row), nil
}

func (s *SessionService) UpdateMode(ctx context.Context, id string, mode protocol.Mode) error {
	if !protocol.Valid(mode) {
		return fmt.Errorf("update mode: %w: %q", domain.ErrUnknownMode, mode)
	}
	n, err := s.queries.UpdateSessionMode(ctx, id, string(mode))
	if err != nil {
		return storageErr("update mode", err)
	}
	logNoop(n, "mode", id)
	return nil
}

func (s *SessionService) UpdateImage(ctx context.Context, id, path string) error {
	n, err := s.queries.UpdateSessionImage(ctx, id, path)
	if err != nil {
		return storageErr("update image", err)
	}
	logNoop(n, "image", id)
	return nil
}

func (s *SessionService) UpdateTitle(ctx context.Context, id, title string) error {
	n, err := s.queries.UpdateSessionTitle(ctx, id, title)
	if err != nil {
		return storageErr("update title", err)
	}
	logNoop(n, "title", id)
	return nil
}

func logNoop(rows int64, field, id string) {
	if rows == 0 {
		slog.Debug("update matched no session", "field", field, "session_id", id)
	}
}

// AddMessage appends to the session log. The first user message also replaces
// the placeholder title, in the same transaction as the insert.
func (s *SessionService) AddMessage(ctx context.Context, sessionID string, role domain.Role, content string, usage *domain.UsageMetrics) (*domain.Message, error) {
	if !role.Persistable() {
		return nil, fmt.Errorf("add message: %w: %q", domain.ErrInvalidRole, role)
	}
	usageData, err := encodeUsage(usage)
	if err != nil {
		return nil, fmt.Errorf("encode usage: %w", err)
	}

	var row repository.Message
	err = s.inTx(ctx, func(q *repository.Queries) error {
		var err error
		row, err = q.AddMessage(ctx, repository.AddMessageParams{
			SessionID: sessionID,
			Role:      string(role),
			Content:   content,
			UsageData: usageData,
		})
		if err != nil {
			return err
		}
		if role != domain.RoleUser {
			return nil
		}
		_, err = q.ReplacePlaceholderTitle(ctx, repository.ReplacePlaceholderTitleParams{
			ID:          sessionID,
			Title:       domain.DeriveTitle(content),
			Placeholder: domain.DefaultTitle,
		})
		return err
	})
	if err != nil {
		return nil, storageErr("add message", err)
	}

	msg := rowToMessage(row)
	return &msg, nil
}

// GetHistory returns the session log in insertion order.
func (s *SessionService) GetHistory(ctx context.Context, id string) ([]domain.Message, error) {
	rows, err := s.queries.GetSessionMessages(ctx, id)
	if err != nil {
		return nil, storageErr("get history", err)
	}
	msgs := make([]domain.Message, len(rows))
	for i, r := range rows {
		msgs[i] = rowToMessage(r)
	}
	return msgs, nil
}

// ListSessions returns the archive: sessions that were actually used, newest first.
func (s *SessionService) ListSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.queries.ListUsedSessions(ctx, domain.DefaultTitle)
	if err != nil {
		return nil, storageErr("list sessions", err)
	}
	sessions := make([]domain.Session, len(rows))
	for i, r := range rows {
		sessions[i] = *rowToSession(r)
	}
	return sessions, nil
}

// DeleteSession removes the log, the session row and the bound image. Image
// removal failures are logged and never stop the row deletion.
func (s *SessionService) DeleteSession(ctx context.Context, id string) error {
	imagePath, err := s.queries.GetSessionImagePath(ctx, id)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return storageErr("delete session", err)
	}

	err = s.inTx(ctx, func(q *repository.Queries) error {
		if _, err := q.DeleteSessionMessages(ctx, id); err != nil {
			return err
		}
		_, err := q.DeleteSession(ctx, id)
		return err
	})
	if err != nil {
		return storageErr("delete session", err)
	}

	path := pgTextToString(imagePath)
	if path != "" && s.images != nil && s.images.Exists(ctx, path) {
		if err := s.images.Remove(ctx, path); err != nil {
			slog.Warn("remove session image", "error", err, "session_id", id, "path", path)
		}
	}
	return nil
}
