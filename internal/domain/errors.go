package domain

import "errors"

// Error is implemented by every error the service renders to callers.
type Error interface {
	error
	GetCode() string
	GetMessage() string
}

// ValidationError reports a caller fault. It never depends on whether an
// account or process exists, so it is always safe to disclose.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *ValidationError) Error() string      { return e.Message }
func (e *ValidationError) GetCode() string    { return e.Code }
func (e *ValidationError) GetMessage() string { return e.Message }

// Kind classifies a RecoveryError for transport mapping.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindConflict
	KindUnauthorized
	KindForbidden
	KindInternal
	KindRateLimited
)

// RecoveryError is the opaque outcome channel. Its messages are fixed strings
// and carry no detail about the branch that produced them.
type RecoveryError struct {
	Code    string
	Message string
	Kind    Kind
}

func (e *RecoveryError) Error() string      { return e.Message }
func (e *RecoveryError) GetCode() string    { return e.Code }
func (e *RecoveryError) GetMessage() string { return e.Message }

func newValidation(code, field, message string) *ValidationError {
	return &ValidationError{Code: code, Field: field, Message: message}
}

func newRecovery(code string, kind Kind, message string) *RecoveryError {
	return &RecoveryError{Code: code, Kind: kind, Message: message}
}

// Caller-fault errors
var (
	ErrInvalidRequestBody = newValidation("V0001", "", "Invalid request body")
	ErrIdentityRequired   = newValidation("V0002", "identity", "Identity is required")
	ErrCaptchaInvalid     = newValidation("V0003", "captcha", "Captcha verification failed")
	ErrInvalidFactorType  = newValidation("V0004", "factor_type", "Invalid factor type")
	ErrPinRequired        = newValidation("V0005", "pin", "Pin is required")
	ErrAnswerRequired     = newValidation("V0006", "answer", "Answer is required")
	ErrPasswordRequired   = newValidation("V0007", "password", "Password is required")
	ErrPasswordTooShort   = newValidation("V0008", "password", "Password is too short")
	ErrTokenRequired      = newValidation("V0009", "token", "Token is required")
	ErrInvalidField       = newValidation("V0010", "", "Invalid field")
)

// Opaque outcomes
var (
	ErrProcessNotFound = newRecovery("R0001", KindNotFound, "Recovery process not found")
	ErrAccountNotFound = newRecovery("R0002", KindNotFound, "Account not found")
	ErrAccountBlocked  = newRecovery("R0003", KindForbidden, "Account cannot be recovered")
	ErrProcessConflict = newRecovery("R0004", KindConflict, "Recovery process was modified concurrently")
	ErrInternal        = newRecovery("R0005", KindInternal, "Internal server error")
	ErrDatabaseQuery   = newRecovery("R0006", KindInternal, "Internal server error")
	ErrUnauthorized    = newRecovery("A0001", KindUnauthorized, "Unauthorized")
	ErrForbidden       = newRecovery("A0002", KindForbidden, "Forbidden")
	ErrTooManyRequests = newRecovery("A0003", KindRateLimited, "Too many requests")
)

// Collaborator sentinels. These never leave the engine.
var (
	ErrFactorNotFound  = errors.New("factor not found")
	ErrAccountMissing  = errors.New("account missing")
	ErrDispatchFailed  = errors.New("pin dispatch failed")
	ErrCaptchaRejected = errors.New("captcha rejected")
)

// IsValidation reports whether err is a caller-fault error.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// AsError converts err into a renderable Error. Anything unknown becomes
// ErrInternal so that collaborator messages never reach the caller.
func AsError(err error) Error {
	var v *ValidationError
	if errors.As(err, &v) {
		return v
	}
	var r *RecoveryError
	if errors.As(err, &r) {
		return r
	}
	return ErrInternal
}
