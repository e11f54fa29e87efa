package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/domain"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/pkg/database"
	apperrors "github.com/TravisHFan/at-Cloud-sign-up-system-sub020/pkg/errors"
)

// MessageRepository implements store.MessageRepository using PostgreSQL.
type MessageRepository struct {
	pool database.DBTX
}

// NewMessageRepository creates a PostgreSQL-backed system message repository.
func NewMessageRepository(pool database.DBTX) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Create inserts a new system message.
func (r *MessageRepository) Create(ctx context.Context, m *domain.SystemMessage) error {
	metadataJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO system_messages (id, title, content, type, priority, metadata, creator, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.pool.Exec(ctx, query,
		m.ID,
		m.Title,
		m.Content,
		m.Type,
		m.Priority,
		metadataJSON,
		m.Creator,
		m.IsActive,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert system message: %w", err)
	}

	return nil
}

// GetByID retrieves a system message by its identifier.
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*domain.SystemMessage, error) {
	query := `
		SELECT id, title, content, type, priority, metadata, creator, is_active, created_at, updated_at
		FROM system_messages
		WHERE id = $1`

	var m domain.SystemMessage
	var metadataJSON []byte

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&m.ID,
		&m.Title,
		&m.Content,
		&m.Type,
		&m.Priority,
		&metadataJSON,
		&m.Creator,
		&m.IsActive,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("system message", id)
		}
		return nil, fmt.Errorf("select system message: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &m.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return &m, nil
}

// MarkInactive flags a message inactive. Missing rows are reported as not
// found so rollback failures carry a usable cause.
func (r *MessageRepository) MarkInactive(ctx context.Context, id string) error {
	query := `
		UPDATE system_messages
		SET is_active = false, updated_at = $1
		WHERE id = $2`

	ct, err := r.pool.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark system message inactive: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("system message", id)
	}

	return nil
}
