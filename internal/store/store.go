package store

import (
	"context"

	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/domain"
)

// MessageRepository persists system messages, the durable channel of a trio.
type MessageRepository interface {
	// Create inserts a new system message.
	Create(ctx context.Context, msg *domain.SystemMessage) error

	// GetByID retrieves a system message by its identifier.
	GetByID(ctx context.Context, id string) (*domain.SystemMessage, error)

	// MarkInactive flags a message inactive and persists the change. Rollback
	// uses this instead of deleting the record.
	MarkInactive(ctx context.Context, id string) error
}
