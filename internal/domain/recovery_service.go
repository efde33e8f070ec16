package domain

import "context"

// StartRequest is the input of a new recovery process.
type StartRequest struct {
	Identity     string
	FactorType   string
	CaptchaProof string
}

// RecoveryService is the operation surface exposed to the API layer. Every
// operation except Start is addressed by a process token.
type RecoveryService interface {
	// Start allocates a token for a new process. Under membership
	// concealment the token is returned for unknown and blocked identities
	// too.
	Start(ctx context.Context, req StartRequest) (string, error)

	// GetProcessStatus returns ErrProcessNotFound until a factor is confirmed
	GetProcessStatus(ctx context.Context, token string) (*ProcessStatus, error)

	// SendPin issues and dispatches a pin. Unknown tokens and disallowed
	// factors are silent no-ops.
	SendPin(ctx context.Context, token, factorType string) error

	// VerifyPin reports whether pin confirmed the factor in flight
	VerifyPin(ctx context.Context, token, pin string) (bool, error)

	// AbortProcess ends a process. It is idempotent and silent.
	AbortProcess(ctx context.Context, token string) error

	// ListQuestions returns ErrProcessNotFound until a factor is confirmed
	ListQuestions(ctx context.Context, token string) ([]SecretQuestion, error)

	AnswerQuestion(ctx context.Context, token, questionID, answer string) (bool, error)

	// AnswerAllQuestions is all-or-nothing; the result never says which
	// answer was wrong.
	AnswerAllQuestions(ctx context.Context, token string, answers []SecretQuestionAnswer) (bool, error)

	// SetNewPassword reports false, with no error, for every token that is
	// not ready for reset.
	SetNewPassword(ctx context.Context, token, newPassword string) (bool, error)
}
