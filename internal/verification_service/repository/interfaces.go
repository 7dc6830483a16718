package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/veritel/golang_services/internal/verification_service/domain"
)

// LedgerRepository is the persistence surface for quotas, balances and run
// history.
type LedgerRepository interface {
	// GetQuota loads the usage snapshot for a user.
	// Returns domain.ErrUserNotFound when no row exists.
	GetQuota(ctx context.Context, userID string) (*domain.UserQuota, error)

	// DebitBalance commits one run's charge in a single conditional update:
	// the balance is reduced by cost and usage increased by processed only
	// when the current balance covers the cost. Returns the new balance, or
	// domain.ErrInsufficientBalance when the guard fails.
	DebitBalance(ctx context.Context, userID string, cost float64, processed int) (float64, error)

	// InsertHistory persists a run summary and returns its id.
	InsertHistory(ctx context.Context, rec *domain.HistoryRecord) (uuid.UUID, error)

	// UpdateHistoryFilePath backfills the artifact location after upload.
	UpdateHistoryFilePath(ctx context.Context, id uuid.UUID, filePath string) error

	// ListHistoryForUser returns a user's runs, newest first.
	ListHistoryForUser(ctx context.Context, userID string, limit int) ([]*domain.HistoryRecord, error)
}
