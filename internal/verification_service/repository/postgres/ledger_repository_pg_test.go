package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritel/golang_services/internal/verification_service/domain"
	"github.com/veritel/golang_services/internal/verification_service/repository"
)

func setupLedgerTest(t *testing.T) (repository.LedgerRepository, pgxmock.PgxPoolIface) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := NewPgLedgerRepository(mockPool, logger)
	return repo, mockPool
}

func TestPgLedgerRepository_GetQuota(t *testing.T) {
	repo, mockPool := setupLedgerTest(t)
	defer mockPool.Close()

	query := `SELECT id, max_limit, used, usdt_balance, created_at, updated_at
		          FROM user_limits WHERE id = \$1`

	t.Run("Found", func(t *testing.T) {
		rows := mockPool.NewRows([]string{"id", "max_limit", "used", "usdt_balance", "created_at", "updated_at"}).
			AddRow("user-1", 1000, 42, 99.5, time.Now().Add(-24*time.Hour), time.Now())

		mockPool.ExpectQuery(query).WithArgs("user-1").WillReturnRows(rows)

		quota, err := repo.GetQuota(context.Background(), "user-1")
		require.NoError(t, err)
		require.NotNil(t, quota)
		assert.Equal(t, "user-1", quota.UserID)
		assert.Equal(t, 1000, quota.MaxLimit)
		assert.Equal(t, 42, quota.Used)
		assert.Equal(t, 99.5, quota.USDTBalance)
		assert.Equal(t, 958, quota.Remaining())
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mockPool.ExpectQuery(query).WithArgs("ghost").WillReturnError(pgx.ErrNoRows)

		quota, err := repo.GetQuota(context.Background(), "ghost")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
		assert.Nil(t, quota)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("DBError", func(t *testing.T) {
		dbErr := errors.New("connection reset")
		mockPool.ExpectQuery(query).WithArgs("user-1").WillReturnError(dbErr)

		_, err := repo.GetQuota(context.Background(), "user-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), dbErr.Error())
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgLedgerRepository_DebitBalance(t *testing.T) {
	repo, mockPool := setupLedgerTest(t)
	defer mockPool.Close()

	query := `UPDATE user_limits
		          SET usdt_balance = usdt_balance - \$1,
		              used = used \+ \$2,
		              updated_at = NOW\(\)
		          WHERE id = \$3 AND usdt_balance >= \$1
		          RETURNING usdt_balance`

	t.Run("Success", func(t *testing.T) {
		rows := mockPool.NewRows([]string{"usdt_balance"}).AddRow(99.49)
		mockPool.ExpectQuery(query).WithArgs(0.51, 51, "user-1").WillReturnRows(rows)

		newBalance, err := repo.DebitBalance(context.Background(), "user-1", 0.51, 51)
		require.NoError(t, err)
		assert.Equal(t, 99.49, newBalance)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("GuardRejected", func(t *testing.T) {
		// The WHERE guard matching no row comes back as ErrNoRows.
		mockPool.ExpectQuery(query).WithArgs(500.0, 50000, "user-1").WillReturnError(pgx.ErrNoRows)

		_, err := repo.DebitBalance(context.Background(), "user-1", 500.0, 50000)
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("DBError", func(t *testing.T) {
		dbErr := errors.New("deadlock detected")
		mockPool.ExpectQuery(query).WithArgs(0.01, 1, "user-1").WillReturnError(dbErr)

		_, err := repo.DebitBalance(context.Background(), "user-1", 0.01, 1)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrInsufficientBalance)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgLedgerRepository_InsertHistory(t *testing.T) {
	repo, mockPool := setupLedgerTest(t)
	defer mockPool.Close()

	query := `INSERT INTO verification_history
		          \(id, user_id, total_uploaded, duplicates, unique_count, verified_count, file_path, created_at\)
		          VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8\)`

	rec := &domain.HistoryRecord{
		ID:            uuid.New(),
		UserID:        "user-1",
		TotalUploaded: 3,
		Duplicates:    1,
		UniqueCount:   2,
		VerifiedCount: 1,
		CreatedAt:     time.Now().UTC(),
	}

	t.Run("Success", func(t *testing.T) {
		mockPool.ExpectExec(query).
			WithArgs(rec.ID, rec.UserID, rec.TotalUploaded, rec.Duplicates, rec.UniqueCount, rec.VerifiedCount, rec.FilePath, rec.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		id, err := repo.InsertHistory(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, id)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NilIDIsGenerated", func(t *testing.T) {
		anon := &domain.HistoryRecord{UserID: "user-1", CreatedAt: rec.CreatedAt}
		mockPool.ExpectExec(query).
			WithArgs(pgxmock.AnyArg(), anon.UserID, 0, 0, 0, 0, "", anon.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		id, err := repo.InsertHistory(context.Background(), anon)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("DBError", func(t *testing.T) {
		dbErr := errors.New("insert failed")
		mockPool.ExpectExec(query).
			WithArgs(rec.ID, rec.UserID, rec.TotalUploaded, rec.Duplicates, rec.UniqueCount, rec.VerifiedCount, rec.FilePath, rec.CreatedAt).
			WillReturnError(dbErr)

		id, err := repo.InsertHistory(context.Background(), rec)
		require.Error(t, err)
		assert.Equal(t, uuid.Nil, id)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgLedgerRepository_UpdateHistoryFilePath(t *testing.T) {
	repo, mockPool := setupLedgerTest(t)
	defer mockPool.Close()

	query := `UPDATE verification_history SET file_path = \$1 WHERE id = \$2`
	historyID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mockPool.ExpectExec(query).
			WithArgs("results/user-1/"+historyID.String()+".csv", historyID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.UpdateHistoryFilePath(context.Background(), historyID, "results/user-1/"+historyID.String()+".csv")
		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NoRow", func(t *testing.T) {
		mockPool.ExpectExec(query).
			WithArgs("results/user-1/x.csv", historyID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateHistoryFilePath(context.Background(), historyID, "results/user-1/x.csv")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no row")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgLedgerRepository_ListHistoryForUser(t *testing.T) {
	repo, mockPool := setupLedgerTest(t)
	defer mockPool.Close()

	query := `SELECT id, user_id, total_uploaded, duplicates, unique_count, verified_count, file_path, created_at
		          FROM verification_history
		          WHERE user_id = \$1
		          ORDER BY created_at DESC
		          LIMIT \$2`

	t.Run("ReturnsRows", func(t *testing.T) {
		newer := uuid.New()
		older := uuid.New()
		rows := mockPool.NewRows([]string{"id", "user_id", "total_uploaded", "duplicates", "unique_count", "verified_count", "file_path", "created_at"}).
			AddRow(newer, "user-1", 10, 2, 8, 7, "results/user-1/"+newer.String()+".csv", time.Now()).
			AddRow(older, "user-1", 5, 0, 5, 5, "results/user-1/"+older.String()+".csv", time.Now().Add(-time.Hour))

		mockPool.ExpectQuery(query).WithArgs("user-1", 50).WillReturnRows(rows)

		records, err := repo.ListHistoryForUser(context.Background(), "user-1", 50)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, newer, records[0].ID)
		assert.Equal(t, 7, records[0].VerifiedCount)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Empty", func(t *testing.T) {
		rows := mockPool.NewRows([]string{"id", "user_id", "total_uploaded", "duplicates", "unique_count", "verified_count", "file_path", "created_at"})
		mockPool.ExpectQuery(query).WithArgs("user-2", 50).WillReturnRows(rows)

		records, err := repo.ListHistoryForUser(context.Background(), "user-2", 50)
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("DBError", func(t *testing.T) {
		dbErr := errors.New("query failed")
		mockPool.ExpectQuery(query).WithArgs("user-1", 50).WillReturnError(dbErr)

		_, err := repo.ListHistoryForUser(context.Background(), "user-1", 50)
		require.Error(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
