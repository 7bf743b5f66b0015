package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const createSession = `-- name: CreateSession :execrows
INSERT INTO sessions (id, title, mode)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO NOTHING
`

type CreateSessionParams struct {
	ID    string
	Title string
	Mode  string
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (int64, error) {
	result, err := q.db.Exec(ctx, createSession, arg.ID, arg.Title, arg.Mode)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getSession = `-- name: GetSession :one
SELECT id, title, image_path, mode, created_at
FROM sessions
WHERE id = $1
`

func (q *Queries) GetSession(ctx context.Context, id string) (Session, error) {
	row := q.db.QueryRow(ctx, getSession, id)
	var s Session
	err := row.Scan(&s.ID, &s.Title, &s.ImagePath, &s.Mode, &s.CreatedAt)
	return s, err
}

const updateSessionMode = `-- name: UpdateSessionMode :execrows
UPDATE sessions SET mode = $2 WHERE id = $1
`

func (q *Queries) UpdateSessionMode(ctx context.Context, id, mode string) (int64, error) {
	result, err := q.db.Exec(ctx, updateSessionMode, id, mode)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const updateSessionImage = `-- name: UpdateSessionImage :execrows
UPDATE sessions SET image_path = $2 WHERE id = $1
`

func (q *Queries) UpdateSessionImage(ctx context.Context, id, imagePath string) (int64, error) {
	result, err := q.db.Exec(ctx, updateSessionImage, id, imagePath)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const updateSessionTitle = `-- name: UpdateSessionTitle :execrows
UPDATE sessions SET title = $2 WHERE id = $1
`

func (q *Queries) UpdateSessionTitle(ctx context.Context, id, title string) (int64, error) {
	result, err := q.db.Exec(ctx, updateSessionTitle, id, title)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const replacePlaceholderTitle = `-- name: ReplacePlaceholderTitle :execrows
UPDATE sessions SET title = $2 WHERE id = $1 AND title = $3
`

type ReplacePlaceholderTitleParams struct {
	ID          string
	Title       string
	Placeholder string
}

func (q *Queries) ReplacePlaceholderTitle(ctx context.Context, arg ReplacePlaceholderTitleParams) (int64, error) {
	result, err := q.db.Exec(ctx, replacePlaceholderTitle, arg.ID, arg.Title, arg.Placeholder)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const addMessage = `-- name: AddMessage :one
INSERT INTO messages (session_id, role, content, usage_data)
VALUES ($1, $2, $3, $4)
RETURNING id, session_id, role, content, usage_data, created_at
`

type AddMessageParams struct {
	SessionID string
	Role      string
	Content   string
	UsageData pgtype.Text
}

func (q *Queries) AddMessage(ctx context.Context, arg AddMessageParams) (Message, error) {
	row := q.db.QueryRow(ctx, addMessage, arg.SessionID, arg.Role, arg.Content, arg.UsageData)
	var m Message
	err := row.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.UsageData, &m.CreatedAt)
	return m, err
}

const getSessionMessages = `-- name: GetSessionMessages :many
SELECT id, session_id, role, content, usage_data, created_at
FROM messages
WHERE session_id = $1
ORDER BY id ASC
`

func (q *Queries) GetSessionMessages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := q.db.Query(ctx, getSessionMessages, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.UsageData, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listUsedSessions = `-- name: ListUsedSessions :many
SELECT s.id, s.title, s.image_path, s.mode, s.created_at
FROM sessions s
WHERE EXISTS (SELECT 1 FROM messages m WHERE m.session_id = s.id)
   OR s.image_path IS NOT NULL
   OR s.title <> $1
ORDER BY s.created_at DESC, s.id
`

func (q *Queries) ListUsedSessions(ctx context.Context, placeholder string) ([]Session, error) {
	rows, err := q.db.Query(ctx, listUsedSessions, placeholder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Title, &s.ImagePath, &s.Mode, &s.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getSessionImagePath = `-- name: GetSessionImagePath :one
SELECT image_path FROM sessions WHERE id = $1
`

func (q *Queries) GetSessionImagePath(ctx context.Context, id string) (pgtype.Text, error) {
	row := q.db.QueryRow(ctx, getSessionImagePath, id)
	var p pgtype.Text
	err := row.Scan(&p)
	return p, err
}

const deleteSessionMessages = `-- name: DeleteSessionMessages :execrows
DELETE FROM messages WHERE session_id = $1
`

func (q *Queries) DeleteSessionMessages(ctx context.Context, sessionID string) (int64, error) {
	result, err := q.db.Exec(ctx, deleteSessionMessages, sessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteSession = `-- name: DeleteSession :execrows
DELETE FROM sessions WHERE id = $1
`

func (q *Queries) DeleteSession(ctx context.Context, id string) (int64, error) {
	result, err := q.db.Exec(ctx, deleteSession, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
