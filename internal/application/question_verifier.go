package application

import (
	"context"

	"github.com/manorfm/recoveryM/internal/domain"
	"go.uber.org/zap"
)

// QuestionVerifier checks secret question answers for an account.
type QuestionVerifier struct {
	store  domain.SecretQuestionStore
	logger *zap.Logger
}

// NewQuestionVerifier creates a new secret question verifier
func NewQuestionVerifier(store domain.SecretQuestionStore, logger *zap.Logger) *QuestionVerifier {
	return &QuestionVerifier{
		store:  store,
		logger: logger,
	}
}

// List returns the account's questions without answers
func (v *QuestionVerifier) List(ctx context.Context, accountID string) ([]domain.SecretQuestion, error) {
	questions, err := v.store.ListQuestions(ctx, accountID)
	if err != nil {
		v.logger.Error("failed to list secret questions",
			zap.String("account_id", accountID),
			zap.Error(err))
		return nil, err
	}
	return questions, nil
}

// CheckOne checks a single answer. It also returns the ids of every question
// the account has, which is what the question stage requires.
func (v *QuestionVerifier) CheckOne(ctx context.Context, accountID, questionID, answer string) (bool, []string, error) {
	questions, err := v.List(ctx, accountID)
	if err != nil {
		return false, nil, err
	}
	required := questionIDs(questions)
	if !containsID(required, questionID) {
		return false, required, nil
	}

	ok, err := v.store.CheckAnswer(ctx, accountID, questionID, answer)
	if err != nil {
		v.logger.Error("failed to check secret question answer",
			zap.String("account_id", accountID),
			zap.String("question_id", questionID),
			zap.Error(err))
		return false, nil, err
	}
	return ok, required, nil
}

// CheckAll checks a full answer set. Every question must be answered and every
// answer is evaluated, so the time spent does not depend on which one is wrong.
func (v *QuestionVerifier) CheckAll(ctx context.Context, accountID string, answers []domain.SecretQuestionAnswer) (bool, []string, error) {
	questions, err := v.List(ctx, accountID)
	if err != nil {
		return false, nil, err
	}
	required := questionIDs(questions)
	if len(required) == 0 {
		return false, required, nil
	}

	byID := make(map[string]string, len(answers))
	for _, a := range answers {
		byID[a.QuestionID] = a.Answer
	}

	allOK := len(byID) == len(required)
	for _, id := range required {
		answer, present := byID[id]
		if !present {
			allOK = false
			continue
		}
		ok, err := v.store.CheckAnswer(ctx, accountID, id, answer)
		if err != nil {
			v.logger.Error("failed to check secret question answer",
				zap.String("account_id", accountID),
				zap.String("question_id", id),
				zap.Error(err))
			return false, nil, err
		}
		if !ok {
			allOK = false
		}
	}
	return allOK, required, nil
}

func questionIDs(questions []domain.SecretQuestion) []string {
	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	return ids
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
