package domain

import (
	"context"
	"time"
)

// CaptchaVerifier checks a captcha proof. A rejected proof is reported as
// ErrCaptchaRejected.
type CaptchaVerifier interface {
	Verify(ctx context.Context, proof string) error
}

// PinPayload is what a notification channel delivers to the user.
type PinPayload struct {
	Pin       string    `json:"pin"`
	ExpiresAt time.Time `json:"expires_at"`
	AbortURL  string    `json:"abort_url,omitempty"`
}

// NotificationChannel delivers pins out of band.
type NotificationChannel interface {
	Dispatch(ctx context.Context, factor AccountFactor, payload PinPayload) error
}

// TokenGenerator produces unguessable process tokens.
type TokenGenerator interface {
	Generate() (string, error)
}

// PinGenerator produces short numeric pins.
type PinGenerator interface {
	Generate(length int) (string, error)
}

// SecretHasher hashes short secrets and compares them in constant time.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Compare(hash, secret string) bool
}

// Clock is the time source of the engine.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock. Values carry Go's monotonic reading, so
// comparisons between them are immune to wall clock jumps.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
