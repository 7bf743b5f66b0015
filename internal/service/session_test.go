package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/set-night/apexinspect/internal/domain"
	"github.com/set-night/apexinspect/internal/protocol"
	"github.com/set-night/apexinspect/internal/repository"
	"github.com/set-night/apexinspect/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sessionCols = []string{"id", "title", "image_path", "mode", "created_at"}
	messageCols = []string{"id", "session_id", "role", "content", "usage_data", "created_at"}
)

func newMockSessions(t *testing.T, images storage.ImageStore) (*SessionService, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewSessionService(mock, repository.New(mock), images), mock
}

func q(sql string) string {
	return regexp.QuoteMeta(sql)
}

func TestCreateSession_Defaults(t *testing.T) {
	svc, mock := newMockSessions(t, nil)

	mock.ExpectExec(q("INSERT INTO sessions")).
		WithArgs("s1", domain.DefaultTitle, string(protocol.General)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, svc.CreateSession(context.Background(), "s1", "", ""))
}

func TestCreateSession_ExistingIdIsNoop(t *testing.T) {
	svc, mock := newMockSessions(t, nil)

	mock.ExpectExec(q("INSERT INTO sessions")).
		WithArgs("s1", "Pump", string(protocol.Safety)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	assert.NoError(t, svc.CreateSession(context.Background(), "s1", "Pump", protocol.Safety))
}

func TestCreateSession_UnknownMode(t *testing.T) {
	svc, _ := newMockSessions(t, nil)

	err := svc.CreateSession(context.Background(), "s1", "", "Thermal Scan")
	assert.ErrorIs(t, err, domain.ErrUnknownMode)
}

func TestGetSession(t *testing.T) {
	svc, mock := newMockSessions(t, nil)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q("FROM sessions")).
		WithArgs("s1").
		WillReturnRows(mock.NewRows(sessionCols).
			AddRow("s1", "Bearing", "data/images/s1.jpg", string(protocol.Defect), created))

	sess, err := svc.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Bearing", sess.Title)
	assert.Equal(t, "data/images/s1.jpg", sess.ImagePath)
	assert.Equal(t, protocol.Defect, sess.Mode)
	assert.True(t, sess.CreatedAt.Equal(created))
	assert.True(t, sess.HasImage())
}

func TestGetSession_NotFound(t *testing.T) {
	svc, mock := newMockSessions(t, nil)

	mock.ExpectQuery(q("FROM sessions")).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := svc.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestUpdateTitle_MissingSessionIsSilent(t *testing.T) {
	svc, mock := newMockSessions(t, nil)

	mock.ExpectExec(q("UPDATE sessions SET title")).
		WithArgs("missing", "Renamed").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.NoError(t, svc.UpdateTitle(context.Background(), "missing", "Renamed"))
}

func TestUpdateMode_RejectsUnknown(t *testing.T) {
	svc, _ := newMockSessions(t, nil)

	err := svc.UpdateMode(context.Background(), "s1", "Nope")
	assert.ErrorIs(t, err, domain.ErrUnknownMode)
}

func TestUpdateImage_DatabaseError(t *testing.T) {
	svc, mock := newMockSessions(t, nil)

	mock.ExpectExec(q("UPDATE sessions SET image_path")).
		WithArgs("s1", "p.jpg").
		WillReturnError(errors.New("connection reset"))

	err := svc.UpdateImage(context.Background(), "s1", "p.jpg")
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestAddMessage_UserReplacesPlaceholderTitle(t *testing.T) {
	svc, mock := newMockSessions(t, nil)
	content := "Inspect this bearing for wear patterns near the seal"

	mock.ExpectBegin()
	mock.ExpectQuery(q("INSERT INTO messages")).
		WithArgs("s1", "user", content, pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows(messageCols).
			AddRow(int64(1), "s1", "user", content, nil, time.Now()))
	mock.ExpectExec(q("UPDATE sessions SET title = $2 WHERE id = $1 AND title = $3")).
		WithArgs("s1", domain.DeriveTitle(content), domain.DefaultTitle).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	msg, err := svc.AddMessage(context.Background(), "s1", domain.RoleUser, content, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.ID)
	assert.Equal(t, domain.RoleUser, msg.Role)
	assert.Nil(t, msg.Usage)
}

func TestAddMessage_AssistantStoresUsage(t *testing.T) {
	svc, mock := newMockSessions(t, nil)
	usage := &domain.UsageMetrics{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150, Latency: 1.5, Throughput: 100}
	raw := `{"prompt_tokens":100,"completion_tokens":50,"total_tokens":150,"latency":1.5,"throughput":100}`

	mock.ExpectBegin()
	mock.ExpectQuery(q("INSERT INTO messages")).
		WithArgs("s1", "assistant", "All clear.", pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows(messageCols).
			AddRow(int64(2), "s1", "assistant", "All clear.", raw, time.Now()))
	mock.ExpectCommit()

	msg, err := svc.AddMessage(context.Background(), "s1", domain.RoleAssistant, "All clear.", usage)
	require.NoError(t, err)
	require.NotNil(t, msg.Usage)
	assert.Equal(t, *usage, *msg.Usage)
}

func TestAddMessage_RejectsSystemRole(t *testing.T) {
	svc, _ := newMockSessions(t, nil)

	_, err := svc.AddMessage(context.Background(), "s1", domain.RoleSystem, "x", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestAddMessage_InsertFailureRollsBack(t *testing.T) {
	svc, mock := newMockSessions(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(q("INSERT INTO messages")).
		WithArgs("missing", "user", "hello", pgxmock.AnyArg()).
		WillReturnError(errors.New("foreign key violation"))
	mock.ExpectRollback()

	_, err := svc.AddMessage(context.Background(), "missing", domain.RoleUser, "hello", nil)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestGetHistory_OrderAndBadUsage(t *testing.T) {
	svc, mock := newMockSessions(t, nil)
	now := time.Now()

	mock.ExpectQuery(q("FROM messages")).
		WithArgs("s1").
		WillReturnRows(mock.NewRows(messageCols).
			AddRow(int64(1), "s1", "user", "q1", nil, now).
			AddRow(int64(2), "s1", "assistant", "a1", `{"total_tokens":42}`, now).
			AddRow(int64(3), "s1", "assistant", "a2", `{broken`, now))

	msgs, err := svc.GetHistory(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "q1", msgs[0].Content)
	require.NotNil(t, msgs[1].Usage)
	assert.Equal(t, 42, msgs[1].Usage.TotalTokens)
	assert.Nil(t, msgs[2].Usage)
}

func TestGetHistory_ScopedToSessionInInsertOrder(t *testing.T) {
	svc, mock := newMockSessions(t, nil)
	now := time.Now()

	// a and b were written alternately; ids are global, so each log has gaps
	mock.ExpectQuery(`FROM messages\s+WHERE session_id = \$1\s+ORDER BY id ASC`).
		WithArgs("a").
		WillReturnRows(mock.NewRows(messageCols).
			AddRow(int64(1), "a", "user", "a1", nil, now).
			AddRow(int64(3), "a", "user", "a2", nil, now))
	mock.ExpectQuery(`FROM messages\s+WHERE session_id = \$1\s+ORDER BY id ASC`).
		WithArgs("b").
		WillReturnRows(mock.NewRows(messageCols).
			AddRow(int64(2), "b", "user", "b1", nil, now).
			AddRow(int64(4), "b", "user", "b2", nil, now))

	a, err := svc.GetHistory(context.Background(), "a")
	require.NoError(t, err)
	b, err := svc.GetHistory(context.Background(), "b")
	require.NoError(t, err)

	assert.Equal(t, []string{"a1", "a2"}, contents(a))
	assert.Equal(t, []string{"b1", "b2"}, contents(b))
}

func contents(msgs []domain.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}

func TestListSessions(t *testing.T) {
	svc, mock := newMockSessions(t, nil)
	now := time.Now()

	mock.ExpectQuery(q("FROM sessions s")).
		WithArgs(domain.DefaultTitle).
		WillReturnRows(mock.NewRows(sessionCols).
			AddRow("b", "Newer", nil, string(protocol.General), now).
			AddRow("a", "Older", "a.jpg", string(protocol.Safety), now.Add(-time.Hour)))

	sessions, err := svc.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "b", sessions[0].ID)
	assert.False(t, sessions[0].HasImage())
	assert.Equal(t, "a.jpg", sessions[1].ImagePath)
}

func TestDeleteSession_RemovesImage(t *testing.T) {
	ctx := context.Background()
	images, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	path, err := images.Save(ctx, "s1", []byte("jpeg"))
	require.NoError(t, err)

	svc, mock := newMockSessions(t, images)

	mock.ExpectQuery(q("SELECT image_path FROM sessions")).
		WithArgs("s1").
		WillReturnRows(mock.NewRows([]string{"image_path"}).AddRow(path))
	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM messages")).
		WithArgs("s1").
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectExec(q("DELETE FROM sessions")).
		WithArgs("s1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	require.NoError(t, svc.DeleteSession(ctx, "s1"))
	assert.False(t, images.Exists(ctx, path))
}

func TestDeleteSession_FailedDeleteKeepsImage(t *testing.T) {
	ctx := context.Background()
	images, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	path, err := images.Save(ctx, "s1", []byte("jpeg"))
	require.NoError(t, err)

	svc, mock := newMockSessions(t, images)

	mock.ExpectQuery(q("SELECT image_path FROM sessions")).
		WithArgs("s1").
		WillReturnRows(mock.NewRows([]string{"image_path"}).AddRow(path))
	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM messages")).
		WithArgs("s1").
		WillReturnError(errors.New("lock timeout"))
	mock.ExpectRollback()

	err = svc.DeleteSession(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.True(t, images.Exists(ctx, path))
}

func TestDeleteSession_MissingIsNoop(t *testing.T) {
	svc, mock := newMockSessions(t, nil)

	mock.ExpectQuery(q("SELECT image_path FROM sessions")).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM messages")).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(q("DELETE FROM sessions")).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()

	assert.NoError(t, svc.DeleteSession(context.Background(), "missing"))
}
