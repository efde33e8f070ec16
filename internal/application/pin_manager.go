package application

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/manorfm/recoveryM/internal/domain"
	"go.uber.org/zap"
)

type pinOutcome int

const (
	pinNone pinOutcome = iota
	pinExpired
	pinMismatch
	pinAborted
	pinMatched
)

// issuedPin is a pin generated for one SendPin call. The plain pin only
// lives until it is dispatched.
type issuedPin struct {
	factor    domain.FactorType
	pin       string
	hash      string
	expiresAt time.Time
}

// PinManager issues, dispatches and verifies pins for the factor stage of a
// process.
type PinManager struct {
	generator domain.PinGenerator
	hasher    domain.SecretHasher
	channel   domain.NotificationChannel
	policy    domain.RecoveryPolicy
	logger    *zap.Logger
}

// NewPinManager creates a new pin manager
func NewPinManager(generator domain.PinGenerator, hasher domain.SecretHasher, channel domain.NotificationChannel, policy domain.RecoveryPolicy, logger *zap.Logger) *PinManager {
	return &PinManager{
		generator: generator,
		hasher:    hasher,
		channel:   channel,
		policy:    policy,
		logger:    logger,
	}
}

// Prepare checks whether a pin may be issued for factor and, if so, moves the
// process to PinSent. A non-empty reason means the request must be ignored.
func (m *PinManager) Prepare(p *domain.RecoveryProcess, factor domain.FactorType, now time.Time) (*issuedPin, string, error) {
	if !p.Pending.Has(factor) {
		return nil, domain.SubtypeWrongState, nil
	}
	if inFlight, ok := p.Stage.InFlight(now); ok && inFlight != factor {
		return nil, domain.SubtypePinInFlight, nil
	}
	if p.Factors[factor] == "" {
		return nil, domain.SubtypeWrongState, nil
	}

	pin, err := m.generator.Generate(m.policy.PinLength)
	if err != nil {
		return nil, "", fmt.Errorf("generate pin: %w", err)
	}
	hash, err := m.hasher.Hash(pin)
	if err != nil {
		return nil, "", fmt.Errorf("hash pin: %w", err)
	}

	issued := &issuedPin{
		factor:    factor,
		pin:       pin,
		hash:      hash,
		expiresAt: now.Add(m.policy.PinTTL),
	}
	// Replaces any previous pin for the same factor.
	p.IssuePin(factor, hash, issued.expiresAt)
	return issued, "", nil
}

// Dispatch sends an issued pin through the channel bound to its factor.
func (m *PinManager) Dispatch(ctx context.Context, p *domain.RecoveryProcess, issued *issuedPin) error {
	factor := domain.AccountFactor{
		AccountID: p.AccountID,
		Type:      issued.factor,
		Value:     p.Factors[issued.factor],
	}
	payload := domain.PinPayload{
		Pin:       issued.pin,
		ExpiresAt: issued.expiresAt,
		AbortURL:  m.abortURL(p.Token),
	}
	if err := m.channel.Dispatch(ctx, factor, payload); err != nil {
		m.logger.Error("failed to dispatch pin",
			zap.String("factor", string(issued.factor)),
			zap.String("token", domain.TokenPrefix(p.Token)),
			zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrDispatchFailed, err)
	}
	return nil
}

// Verify compares pin with the pin in flight and applies the outcome to the
// process.
func (m *PinManager) Verify(p *domain.RecoveryProcess, pin string, now time.Time) pinOutcome {
	if p.Stage.Status != domain.StagePinSent {
		return pinNone
	}
	if _, ok := p.Stage.InFlight(now); !ok {
		return pinExpired
	}
	if !m.hasher.Compare(p.Stage.PinHash, pin) {
		if p.RecordFailedAttempt(m.policy) {
			return pinAborted
		}
		return pinMismatch
	}
	p.ConfirmFactor(p.Stage.Factor, m.policy)
	return pinMatched
}

func (m *PinManager) abortURL(token string) string {
	if m.policy.AbortURL == "" {
		return ""
	}
	return m.policy.AbortURL + "?token=" + url.QueryEscape(token)
}
