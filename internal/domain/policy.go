package domain

import (
	"fmt"
	"time"
)

// RecoveryPolicy is the explicit configuration of the recovery engine.
type RecoveryPolicy struct {
	// ConcealMembership makes unknown and blocked identities look like a
	// started process.
	ConcealMembership bool

	RequireCaptcha          bool
	AllowResetWhenSuspended bool

	// RecoveryFactors seeds the pending factor set of a new process. Only
	// factor types the account has registered are kept.
	RecoveryFactors FactorSet

	// MinConfirmedFactors is the number of confirmed factors needed to leave
	// the factor stage. It is capped by the number of factors the process has.
	MinConfirmedFactors int

	// RequireSecretQuestions adds the question stage after the factor stage.
	RequireSecretQuestions bool

	// MaxAttempts is the shared budget of wrong pins and wrong answers.
	MaxAttempts int

	PinLength         int
	PinTTL            time.Duration
	ProcessTTL        time.Duration
	StartMinDuration  time.Duration
	MinPasswordLength int

	// PinMinDuration is the latency floor of SendPin and VerifyPin. It should
	// exceed the slowest pin dispatch so that decoy and real processes answer
	// alike.
	PinMinDuration time.Duration

	// AbortURL is the base of the "this wasn't me" link put in notifications.
	AbortURL string
}

// DefaultRecoveryPolicy returns the policy used when nothing is configured.
func DefaultRecoveryPolicy() RecoveryPolicy {
	return RecoveryPolicy{
		ConcealMembership:       true,
		RequireCaptcha:          false,
		AllowResetWhenSuspended: false,
		RecoveryFactors:         FactorSet{FactorEmail},
		MinConfirmedFactors:     1,
		RequireSecretQuestions:  false,
		MaxAttempts:             5,
		PinLength:               6,
		PinTTL:                  10 * time.Minute,
		ProcessTTL:              time.Hour,
		StartMinDuration:        250 * time.Millisecond,
		PinMinDuration:          time.Second,
		MinPasswordLength:       8,
	}
}

// Validate checks the policy for inconsistent values.
func (p RecoveryPolicy) Validate() error {
	if len(p.RecoveryFactors) == 0 {
		return fmt.Errorf("recovery policy: at least one recovery factor is required")
	}
	for _, f := range p.RecoveryFactors {
		if _, err := ParseFactorType(string(f)); err != nil {
			return fmt.Errorf("recovery policy: unknown factor type %q", f)
		}
	}
	if p.MinConfirmedFactors < 1 {
		return fmt.Errorf("recovery policy: min confirmed factors must be positive")
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("recovery policy: max attempts must be positive")
	}
	if p.PinLength < 4 || p.PinLength > 12 {
		return fmt.Errorf("recovery policy: pin length must be between 4 and 12")
	}
	if p.PinTTL <= 0 || p.ProcessTTL <= 0 {
		return fmt.Errorf("recovery policy: ttl values must be positive")
	}
	if p.PinTTL >= p.ProcessTTL {
		return fmt.Errorf("recovery policy: pin ttl must be shorter than process ttl")
	}
	if p.StartMinDuration < 0 || p.PinMinDuration < 0 {
		return fmt.Errorf("recovery policy: latency floors must not be negative")
	}
	return nil
}
