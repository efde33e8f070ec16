package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/manorfm/recoveryM/internal/domain"
	"github.com/manorfm/recoveryM/internal/infrastructure/database"
	"github.com/manorfm/recoveryM/internal/infrastructure/password"
	"go.uber.org/zap"
)

// AccountRepository implements domain.AccountStore on PostgreSQL
type AccountRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.Postgres, logger *zap.Logger) *AccountRepository {
	return &AccountRepository{
		db:     db,
		logger: logger,
	}
}

// GetStatus returns the recovery-relevant flags of an account
func (r *AccountRepository) GetStatus(ctx context.Context, accountID string) (*domain.AccountStatus, error) {
	query := `
		SELECT id, disabled, suspended, do_not_conceal
		FROM accounts
		WHERE id = $1
	`

	status := &domain.AccountStatus{}
	err := r.db.QueryRow(ctx, query, accountID).Scan(&status.AccountID, &status.Disabled, &status.Suspended, &status.DoNotConceal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountMissing
		}
		r.logger.Error("failed to get account status",
			zap.String("account_id", accountID),
			zap.String("error_type", fmt.Sprintf("%T", err)),
			zap.Error(err))
		return nil, domain.ErrDatabaseQuery
	}

	return status, nil
}

// SetPassword hashes newPassword and stores it
func (r *AccountRepository) SetPassword(ctx context.Context, accountID, newPassword string) error {
	hash, err := password.HashPassword(newPassword)
	if err != nil {
		r.logger.Error("failed to hash password", zap.Error(err))
		return domain.ErrInternal
	}

	query := `
		UPDATE accounts
		SET password_hash = $1, updated_at = $2
		WHERE id = $3
	`

	tag, err := r.db.ExecRaw(ctx, query, hash, time.Now(), accountID)
	if err != nil {
		r.logger.Error("failed to set password",
			zap.String("account_id", accountID),
			zap.Error(err))
		return domain.ErrDatabaseQuery
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountMissing
	}

	return nil
}
