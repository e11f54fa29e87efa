package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/domain"
	apperrors "github.com/TravisHFan/at-Cloud-sign-up-system-sub020/pkg/errors"
)

func newMessageTestFixture(t *testing.T) (*MessageRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	repo := NewMessageRepository(mock)
	return repo, mock
}

func sampleMessage() *domain.SystemMessage {
	now := time.Now().UTC()
	return &domain.SystemMessage{
		ID:        "msg-1",
		Title:     "Maintenance window",
		Content:   "The system goes down at midnight.",
		Type:      domain.MessageTypeMaintenance,
		Priority:  domain.MessagePriorityHigh,
		Metadata:  map[string]any{"window": "00:00-02:00"},
		Creator:   "admin-1",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestMessageRepository_Create_Success(t *testing.T) {
	repo, mock := newMessageTestFixture(t)
	defer mock.Close()

	m := sampleMessage()
	mock.ExpectExec("INSERT INTO system_messages").
		WithArgs(m.ID, m.Title, m.Content, m.Type, m.Priority, pgxmock.AnyArg(),
			m.Creator, m.IsActive, m.CreatedAt, m.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), m)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepository_Create_ExecError(t *testing.T) {
	repo, mock := newMessageTestFixture(t)
	defer mock.Close()

	m := sampleMessage()
	mock.ExpectExec("INSERT INTO system_messages").
		WithArgs(m.ID, m.Title, m.Content, m.Type, m.Priority, pgxmock.AnyArg(),
			m.Creator, m.IsActive, m.CreatedAt, m.UpdatedAt).
		WillReturnError(errors.New("connection refused"))

	err := repo.Create(context.Background(), m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert system message")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// GetByID
// ---------------------------------------------------------------------------

func TestMessageRepository_GetByID_Success(t *testing.T) {
	repo, mock := newMessageTestFixture(t)
	defer mock.Close()

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "title", "content", "type", "priority", "metadata",
		"creator", "is_active", "created_at", "updated_at",
	}).AddRow(
		"msg-1", "Maintenance window", "The system goes down at midnight.",
		domain.MessageTypeMaintenance, domain.MessagePriorityHigh,
		[]byte(`{"window":"00:00-02:00"}`), "admin-1", true, now, now,
	)

	mock.ExpectQuery("SELECT id, title, content").
		WithArgs("msg-1").
		WillReturnRows(rows)

	m, err := repo.GetByID(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", m.ID)
	assert.Equal(t, "Maintenance window", m.Title)
	assert.Equal(t, "00:00-02:00", m.Metadata["window"])
	assert.True(t, m.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newMessageTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, title, content").
		WithArgs("msg-missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "msg-missing")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// MarkInactive
// ---------------------------------------------------------------------------

func TestMessageRepository_MarkInactive_Success(t *testing.T) {
	repo, mock := newMessageTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE system_messages").
		WithArgs(pgxmock.AnyArg(), "msg-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.MarkInactive(context.Background(), "msg-1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepository_MarkInactive_NotFound(t *testing.T) {
	repo, mock := newMessageTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE system_messages").
		WithArgs(pgxmock.AnyArg(), "msg-missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.MarkInactive(context.Background(), "msg-missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
