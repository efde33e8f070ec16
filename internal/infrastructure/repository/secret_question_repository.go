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

// dummyAnswerHash is compared against when a question does not exist, so
// unknown ids cost the same as wrong answers.
const dummyAnswerHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z3Q8hGRy3E5rOZ3xE4YrQ9mK"

// SecretQuestionRepository implements domain.SecretQuestionStore on PostgreSQL
type SecretQuestionRepository struct {
	db     *database.Postgres
	hasher domain.SecretHasher
	logger *zap.Logger
}

// NewSecretQuestionRepository creates a new secret question repository
func NewSecretQuestionRepository(db *database.Postgres, hasher domain.SecretHasher, logger *zap.Logger) *SecretQuestionRepository {
	return &SecretQuestionRepository{
		db:     db,
		hasher: hasher,
		logger: logger,
	}
}

// ListQuestions returns the account's questions ordered by position
func (r *SecretQuestionRepository) ListQuestions(ctx context.Context, accountID string) ([]domain.SecretQuestion, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, text
		FROM secret_questions
		WHERE account_id = $1
		ORDER BY position
	`, accountID)
	if err != nil {
		r.logger.Error("failed to list secret questions", zap.String("account_id", accountID), zap.Error(err))
		return nil, domain.ErrDatabaseQuery
	}
	defer rows.Close()

	questions := []domain.SecretQuestion{}
	for rows.Next() {
		var q domain.SecretQuestion
		if err := rows.Scan(&q.ID, &q.Text); err != nil {
			r.logger.Error("failed to scan secret question", zap.Error(err))
			return nil, domain.ErrDatabaseQuery
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrDatabaseQuery
	}

	return questions, nil
}

// CheckAnswer compares answer against the stored hash
func (r *SecretQuestionRepository) CheckAnswer(ctx context.Context, accountID, questionID, answer string) (bool, error) {
	var hash string
	err := r.db.QueryRow(ctx, `
		SELECT answer_hash
		FROM secret_questions
		WHERE id = $1 AND account_id = $2
	`, questionID, accountID).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.hasher.Compare(dummyAnswerHash, NormalizeAnswer(answer))
			return false, nil
		}
		r.logger.Error("failed to get secret question", zap.String("question_id", questionID), zap.Error(err))
		return false, domain.ErrDatabaseQuery
	}

	return r.hasher.Compare(hash, NormalizeAnswer(answer)), nil
}

// NormalizeAnswer is applied to answers before hashing and before comparing.
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.Join(strings.Fields(answer), " "))
}
