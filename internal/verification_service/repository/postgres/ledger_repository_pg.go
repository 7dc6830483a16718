package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/veritel/golang_services/internal/verification_service/domain"
	"github.com/veritel/golang_services/internal/verification_service/repository"
)

// PgxPool is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgLedgerRepository struct {
	db     PgxPool
	logger *slog.Logger
}

func NewPgLedgerRepository(db PgxPool, logger *slog.Logger) repository.LedgerRepository {
	return &PgLedgerRepository{db: db, logger: logger.With("component", "ledger_repository_pg")}
}

func (r *PgLedgerRepository) GetQuota(ctx context.Context, userID string) (*domain.UserQuota, error) {
	query := `SELECT id, max_limit, used, usdt_balance, created_at, updated_at
	          FROM user_limits WHERE id = $1`

	var q domain.UserQuota
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&q.UserID,
		&q.MaxLimit,
		&q.Used,
		&q.USDTBalance,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.InfoContext(ctx, "No quota row for user", "user_id", userID)
			return nil, domain.ErrUserNotFound
		}
		r.logger.ErrorContext(ctx, "Error scanning user quota", "user_id", userID, "error", err)
		return nil, fmt.Errorf("scanning quota for user %s: %w", userID, err)
	}
	return &q, nil
}

func (r *PgLedgerRepository) DebitBalance(ctx context.Context, userID string, cost float64, processed int) (float64, error) {
	// Conditional update: the balance guard lives in the WHERE clause so two
	// concurrent runs for the same user cannot jointly overdraw.
	query := `UPDATE user_limits
	          SET usdt_balance = usdt_balance - $1,
	              used = used + $2,
	              updated_at = NOW()
	          WHERE id = $3 AND usdt_balance >= $1
	          RETURNING usdt_balance`

	var newBalance float64
	err := r.db.QueryRow(ctx, query, cost, processed, userID).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the user vanished or the guard failed; the caller has
			// already resolved the user at run start, so report the balance.
			r.logger.WarnContext(ctx, "Debit rejected by balance guard",
				"user_id", userID, "cost", cost, "processed", processed)
			return 0, domain.ErrInsufficientBalance
		}
		r.logger.ErrorContext(ctx, "Error debiting balance", "user_id", userID, "error", err)
		return 0, fmt.Errorf("debiting balance for user %s: %w", userID, err)
	}

	r.logger.InfoContext(ctx, "Balance debited",
		"user_id", userID, "cost", cost, "processed", processed, "new_balance", newBalance)
	return newBalance, nil
}

func (r *PgLedgerRepository) InsertHistory(ctx context.Context, rec *domain.HistoryRecord) (uuid.UUID, error) {
	query := `INSERT INTO verification_history
	          (id, user_id, total_uploaded, duplicates, unique_count, verified_count, file_path, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	_, err := r.db.Exec(ctx, query,
		id, rec.UserID, rec.TotalUploaded, rec.Duplicates,
		rec.UniqueCount, rec.VerifiedCount, rec.FilePath, rec.CreatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error inserting history record", "user_id", rec.UserID, "error", err)
		return uuid.Nil, fmt.Errorf("inserting history for user %s: %w", rec.UserID, err)
	}
	return id, nil
}

func (r *PgLedgerRepository) UpdateHistoryFilePath(ctx context.Context, id uuid.UUID, filePath string) error {
	query := `UPDATE verification_history SET file_path = $1 WHERE id = $2`

	tag, err := r.db.Exec(ctx, query, filePath, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error backfilling history file path", "history_id", id, "error", err)
		return fmt.Errorf("updating history %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating history %s: no row", id)
	}
	return nil
}

func (r *PgLedgerRepository) ListHistoryForUser(ctx context.Context, userID string, limit int) ([]*domain.HistoryRecord, error) {
	query := `SELECT id, user_id, total_uploaded, duplicates, unique_count, verified_count, file_path, created_at
	          FROM verification_history
	          WHERE user_id = $1
	          ORDER BY created_at DESC
	          LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing history", "user_id", userID, "error", err)
		return nil, fmt.Errorf("listing history for user %s: %w", userID, err)
	}
	defer rows.Close()

	var records []*domain.HistoryRecord
	for rows.Next() {
		var rec domain.HistoryRecord
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.TotalUploaded, &rec.Duplicates,
			&rec.UniqueCount, &rec.VerifiedCount, &rec.FilePath, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history rows: %w", err)
	}
	return records, nil
}
