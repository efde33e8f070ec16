package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/manorfm/recoveryM/internal/domain"
	"github.com/manorfm/recoveryM/internal/infrastructure/database"
	"go.uber.org/zap"
)

// FactorRepository implements domain.FactorResolver on PostgreSQL
type FactorRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewFactorRepository creates a new factor repository
func NewFactorRepository(db *database.Postgres, logger *zap.Logger) *FactorRepository {
	return &FactorRepository{
		db:     db,
		logger: logger,
	}
}

// Resolve finds the confirmed factor of type hint whose value matches claim
func (r *FactorRepository) Resolve(ctx context.Context, claim string, hint domain.FactorType) (*domain.AccountFactor, error) {
	query := `
		SELECT account_id, type, value, confirmed
		FROM account_factors
		WHERE type = $1 AND LOWER(value) = $2 AND confirmed
	`

	factor := &domain.AccountFactor{}
	err := r.db.QueryRow(ctx, query, string(hint), normalizeClaim(claim, hint)).
		Scan(&factor.AccountID, &factor.Type, &factor.Value, &factor.Confirmed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFactorNotFound
		}
		r.logger.Error("failed to resolve factor", zap.String("type", string(hint)), zap.Error(err))
		return nil, domain.ErrDatabaseQuery
	}

	return factor, nil
}

// ListFactors returns every factor registered for an account
func (r *FactorRepository) ListFactors(ctx context.Context, accountID string) ([]domain.AccountFactor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT account_id, type, value, confirmed
		FROM account_factors
		WHERE account_id = $1
		ORDER BY type
	`, accountID)
	if err != nil {
		r.logger.Error("failed to list factors", zap.String("account_id", accountID), zap.Error(err))
		return nil, domain.ErrDatabaseQuery
	}
	defer rows.Close()

	var factors []domain.AccountFactor
	for rows.Next() {
		var f domain.AccountFactor
		if err := rows.Scan(&f.AccountID, &f.Type, &f.Value, &f.Confirmed); err != nil {
			r.logger.Error("failed to scan factor", zap.Error(err))
			return nil, domain.ErrDatabaseQuery
		}
		factors = append(factors, f)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("failed to iterate factors", zap.Error(err))
		return nil, domain.ErrDatabaseQuery
	}

	return factors, nil
}

// normalizeClaim lowercases emails and strips phone formatting.
func normalizeClaim(claim string, t domain.FactorType) string {
	claim = strings.TrimSpace(claim)
	if t == domain.FactorEmail {
		return strings.ToLower(claim)
	}
	var b strings.Builder
	for i, c := range claim {
		if (c >= '0' && c <= '9') || (c == '+' && i == 0) {
			b.WriteRune(c)
		}
	}
	return b.String()
}
