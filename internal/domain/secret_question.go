package domain

import "context"

// SecretQuestion is a question configured for an account. Answers are never
// part of this type.
type SecretQuestion struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// SecretQuestionAnswer is a caller-submitted answer to one question.
type SecretQuestionAnswer struct {
	QuestionID string `json:"question_id" validate:"required"`
	Answer     string `json:"answer" validate:"required"`
}

// SecretQuestionStore holds the account-bound questions and answer hashes.
type SecretQuestionStore interface {
	// ListQuestions returns the account's questions ordered by position
	ListQuestions(ctx context.Context, accountID string) ([]SecretQuestion, error)

	// CheckAnswer compares answer against the stored hash. Unknown questions
	// compare as false.
	CheckAnswer(ctx context.Context, accountID, questionID, answer string) (bool, error)
}
