package domain

import (
	"context"
	"time"
)

// ProcessType names the workflow a process belongs to.
type ProcessType string

const ProcessTypePasswordReset ProcessType = "password-reset"

// ProcessState is the position of a process in the recovery workflow.
type ProcessState string

const (
	StateStarted                   ProcessState = "started"
	StateFactorConfirmationPending ProcessState = "factor_confirmation_pending"
	StateFactorConfirmed           ProcessState = "factor_confirmed"
	StateQuestionsPending          ProcessState = "questions_pending"
	StateReadyForReset             ProcessState = "ready_for_reset"
	StateCompleted                 ProcessState = "completed"
	StateAborted                   ProcessState = "aborted"
	StateExpired                   ProcessState = "expired"
)

// IsTerminal reports whether no operation may change the state anymore.
func (s ProcessState) IsTerminal() bool {
	return s == StateCompleted || s == StateAborted || s == StateExpired
}

// FactorStageStatus is the state of the one-factor-at-a-time sub machine.
type FactorStageStatus string

const (
	StageIdle    FactorStageStatus = "idle"
	StagePinSent FactorStageStatus = "pin_sent"
)

// FactorStage tracks the pin currently in flight, if any.
type FactorStage struct {
	Status       FactorStageStatus `json:"status"`
	Factor       FactorType        `json:"factor,omitempty"`
	PinHash      string            `json:"pin_hash,omitempty"`
	PinExpiresAt time.Time         `json:"pin_expires_at,omitempty"`
}

// IdleStage is the stage with no pin in flight.
func IdleStage() FactorStage {
	return FactorStage{Status: StageIdle}
}

// PinSentStage is the stage after a pin for factor has been issued.
func PinSentStage(factor FactorType, pinHash string, expiresAt time.Time) FactorStage {
	return FactorStage{
		Status:       StagePinSent,
		Factor:       factor,
		PinHash:      pinHash,
		PinExpiresAt: expiresAt,
	}
}

// InFlight returns the factor whose pin is still valid at now.
func (s FactorStage) InFlight(now time.Time) (FactorType, bool) {
	if s.Status != StagePinSent || !now.Before(s.PinExpiresAt) {
		return "", false
	}
	return s.Factor, true
}

// RecoveryProcess is one in-flight recovery attempt, addressed by its token.
type RecoveryProcess struct {
	Token     string       `json:"token"`
	Type      ProcessType  `json:"type"`
	AccountID string       `json:"account_id,omitempty"`
	State     ProcessState `json:"state"`

	Pending   FactorSet   `json:"pending"`
	Completed FactorSet   `json:"completed"`
	Stage     FactorStage `json:"stage"`

	// Factors holds the contact value for each pending or completed type.
	Factors map[FactorType]string `json:"factors,omitempty"`

	AnsweredQuestions []string `json:"answered_questions,omitempty"`
	Attempts          int      `json:"attempts"`

	// Decoy marks a placeholder created to conceal an unknown or blocked
	// identity. Decoys never progress past StateStarted.
	Decoy bool `json:"decoy,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewRecoveryProcess creates a process in StateStarted.
func NewRecoveryProcess(token string, now time.Time, ttl time.Duration) *RecoveryProcess {
	return &RecoveryProcess{
		Token:     token,
		Type:      ProcessTypePasswordReset,
		State:     StateStarted,
		Pending:   FactorSet{},
		Completed: FactorSet{},
		Stage:     IdleStage(),
		Factors:   map[FactorType]string{},
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired reports whether the process validity window has passed.
func (p *RecoveryProcess) IsExpired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// IsActive reports whether operations may still act on the process.
func (p *RecoveryProcess) IsActive(now time.Time) bool {
	return !p.State.IsTerminal() && !p.IsExpired(now)
}

// HasConfirmedFactor reports whether at least one factor was proven.
func (p *RecoveryProcess) HasConfirmedFactor() bool {
	return len(p.Completed) > 0
}

// Clone returns a deep copy of the process.
func (p *RecoveryProcess) Clone() *RecoveryProcess {
	c := *p
	c.Pending = p.Pending.Clone()
	c.Completed = p.Completed.Clone()
	c.Factors = make(map[FactorType]string, len(p.Factors))
	for k, v := range p.Factors {
		c.Factors[k] = v
	}
	if p.AnsweredQuestions != nil {
		c.AnsweredQuestions = append([]string(nil), p.AnsweredQuestions...)
	}
	return &c
}

func (p *RecoveryProcess) requiredFactors(policy RecoveryPolicy) int {
	required := policy.MinConfirmedFactors
	if total := len(p.Pending) + len(p.Completed); required > total {
		required = total
	}
	if required < 1 {
		required = 1
	}
	return required
}

// FactorStageSatisfied reports whether enough factors have been confirmed.
func (p *RecoveryProcess) FactorStageSatisfied(policy RecoveryPolicy) bool {
	return len(p.Completed) >= p.requiredFactors(policy)
}

// IssuePin moves the sub machine to PinSent for factor.
func (p *RecoveryProcess) IssuePin(factor FactorType, pinHash string, expiresAt time.Time) {
	p.Stage = PinSentStage(factor, pinHash, expiresAt)
	if p.State == StateStarted {
		p.State = StateFactorConfirmationPending
	}
}

// RollbackPin returns the sub machine to Idle if pinHash is still the pin in
// flight. It reports whether anything changed.
func (p *RecoveryProcess) RollbackPin(pinHash string) bool {
	if p.Stage.Status != StagePinSent || p.Stage.PinHash != pinHash {
		return false
	}
	p.Stage = IdleStage()
	if p.State == StateFactorConfirmationPending && !p.HasConfirmedFactor() {
		p.State = StateStarted
	}
	return true
}

// ConfirmFactor records factor as proven and advances the state.
func (p *RecoveryProcess) ConfirmFactor(factor FactorType, policy RecoveryPolicy) {
	p.Pending = p.Pending.Without(factor)
	p.Completed = p.Completed.With(factor)
	p.Stage = IdleStage()
	p.advance(policy)
}

func (p *RecoveryProcess) advance(policy RecoveryPolicy) {
	if p.State.IsTerminal() {
		return
	}
	switch {
	case !p.FactorStageSatisfied(policy):
		p.State = StateFactorConfirmationPending
	case policy.RequireSecretQuestions:
		if p.State != StateReadyForReset {
			p.State = StateQuestionsPending
		}
	default:
		p.State = StateFactorConfirmed
	}
}

// PassQuestions records passed question ids and moves the process to
// StateReadyForReset once every id in required has passed.
func (p *RecoveryProcess) PassQuestions(passed []string, required []string) {
	for _, id := range passed {
		if !containsString(p.AnsweredQuestions, id) {
			p.AnsweredQuestions = append(p.AnsweredQuestions, id)
		}
	}
	if len(required) == 0 {
		return
	}
	for _, id := range required {
		if !containsString(p.AnsweredQuestions, id) {
			return
		}
	}
	p.State = StateReadyForReset
}

// ReadyForReset reports whether SetNewPassword may succeed.
func (p *RecoveryProcess) ReadyForReset(policy RecoveryPolicy) bool {
	if p.Decoy || p.State.IsTerminal() || !p.FactorStageSatisfied(policy) {
		return false
	}
	if policy.RequireSecretQuestions {
		return p.State == StateReadyForReset
	}
	return p.State == StateFactorConfirmed || p.State == StateReadyForReset
}

// RecordFailedAttempt consumes one unit of the guessing budget. It aborts
// the process and returns true when the budget is exhausted.
func (p *RecoveryProcess) RecordFailedAttempt(policy RecoveryPolicy) bool {
	p.Attempts++
	if p.Attempts >= policy.MaxAttempts {
		p.Abort()
		return true
	}
	return false
}

// Abort moves the process to StateAborted.
func (p *RecoveryProcess) Abort() {
	p.State = StateAborted
	p.Stage = IdleStage()
}

// Complete moves the process to StateCompleted.
func (p *RecoveryProcess) Complete() {
	p.State = StateCompleted
	p.Stage = IdleStage()
}

// ProcessStatus is the caller-facing view of a confirmed process.
type ProcessStatus struct {
	Type              ProcessType           `json:"type"`
	State             ProcessState          `json:"state"`
	Pending           FactorSet             `json:"pending_factors"`
	Completed         FactorSet             `json:"completed_factors"`
	Factors           map[FactorType]string `json:"factors"`
	PinInFlight       FactorType            `json:"pin_in_flight,omitempty"`
	AttemptsRemaining int                   `json:"attempts_remaining"`
	ExpiresAt         time.Time             `json:"expires_at"`
}

// Status builds the caller-facing view with masked factor values.
func (p *RecoveryProcess) Status(now time.Time, policy RecoveryPolicy) *ProcessStatus {
	masked := make(map[FactorType]string, len(p.Factors))
	for t, v := range p.Factors {
		masked[t] = t.Mask(v)
	}
	inFlight, _ := p.Stage.InFlight(now)
	remaining := policy.MaxAttempts - p.Attempts
	if remaining < 0 {
		remaining = 0
	}
	return &ProcessStatus{
		Type:              p.Type,
		State:             p.State,
		Pending:           p.Pending.Clone(),
		Completed:         p.Completed.Clone(),
		Factors:           masked,
		PinInFlight:       inFlight,
		AttemptsRemaining: remaining,
		ExpiresAt:         p.ExpiresAt,
	}
}

// ProcessStore persists in-flight processes.
type ProcessStore interface {
	// Create stores a new process. It fails with ErrProcessConflict when the
	// token is already taken.
	Create(ctx context.Context, process *RecoveryProcess) error

	// Get returns ErrProcessNotFound for unknown, expired and terminal tokens.
	Get(ctx context.Context, token string) (*RecoveryProcess, error)

	// Update is a compare-and-swap on Version. On success process.Version is
	// incremented; a stale version fails with ErrProcessConflict.
	Update(ctx context.Context, process *RecoveryProcess) error

	// Delete removes a process. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error

	// PurgeExpired removes processes that expired or ended before now and
	// returns how many were removed.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
