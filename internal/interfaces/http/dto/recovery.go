package dto

import "github.com/manorfm/recoveryM/internal/domain"

// StartRecoveryRequest opens a recovery process
type StartRecoveryRequest struct {
	Identity     string `json:"identity" validate:"max=320"`
	FactorType   string `json:"factor_type,omitempty" validate:"max=16"`
	CaptchaProof string `json:"captcha,omitempty" validate:"max=4096"`
}

// StartRecoveryResponse carries the process token. It is returned for
// unknown identities too.
type StartRecoveryResponse struct {
	Token string `json:"token"`
}

// TokenRequest addresses an existing process
type TokenRequest struct {
	Token string `json:"token" validate:"max=128"`
}

// SendPinRequest asks for a pin on one factor
type SendPinRequest struct {
	Token      string `json:"token" validate:"max=128"`
	FactorType string `json:"factor_type" validate:"max=16"`
}

// VerifyPinRequest submits the pin received out of band
type VerifyPinRequest struct {
	Token string `json:"token" validate:"max=128"`
	Pin   string `json:"pin" validate:"max=16"`
}

// VerifyPinResponse reports whether the pin confirmed the factor
type VerifyPinResponse struct {
	Verified bool `json:"verified"`
}

// QuestionsResponse lists the account's secret questions
type QuestionsResponse struct {
	Questions []domain.SecretQuestion `json:"questions"`
}

// AnswerQuestionRequest answers one secret question
type AnswerQuestionRequest struct {
	Token      string `json:"token" validate:"max=128"`
	QuestionID string `json:"question_id" validate:"max=64"`
	Answer     string `json:"answer" validate:"max=256"`
}

// AnswerAllQuestionsRequest answers every secret question at once
type AnswerAllQuestionsRequest struct {
	Token   string                        `json:"token" validate:"max=128"`
	Answers []domain.SecretQuestionAnswer `json:"answers" validate:"max=32,dive"`
}

// AnswerResponse reports whether the answers were accepted
type AnswerResponse struct {
	Accepted bool `json:"accepted"`
}

// SetPasswordRequest completes the reset
type SetPasswordRequest struct {
	Token       string `json:"token" validate:"max=128"`
	NewPassword string `json:"new_password" validate:"max=1024"`
}

// SetPasswordResponse reports whether the password was replaced
type SetPasswordResponse struct {
	Updated bool `json:"updated"`
}

// IncidentsResponse lists recent incidents for operators
type IncidentsResponse struct {
	Incidents []domain.Incident `json:"incidents"`
}
