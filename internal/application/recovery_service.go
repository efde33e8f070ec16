package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/manorfm/recoveryM/internal/domain"
	"go.uber.org/zap"
)

const maxUpdateRetries = 4

// errSilent aborts a mutation without writing. The operation reports its
// neutral result to the caller.
var errSilent = errors.New("silent no-op")

// RecoveryDeps groups the collaborators of the recovery engine.
type RecoveryDeps struct {
	Store     domain.ProcessStore
	Resolver  domain.FactorResolver
	Accounts  domain.AccountStore
	Questions domain.SecretQuestionStore
	Channel   domain.NotificationChannel
	Captcha   domain.CaptchaVerifier
	Tokens    domain.TokenGenerator
	Pins      domain.PinGenerator
	Hasher    domain.SecretHasher
	Incidents domain.IncidentLog
	Clock     domain.Clock
}

// RecoveryService drives password-reset processes through their state
// machine while concealing account membership from the caller.
type RecoveryService struct {
	store     domain.ProcessStore
	resolver  domain.FactorResolver
	accounts  domain.AccountStore
	captcha   domain.CaptchaVerifier
	tokens    domain.TokenGenerator
	incidents domain.IncidentLog
	clock     domain.Clock
	pins      *PinManager
	questions *QuestionVerifier
	policy    domain.RecoveryPolicy
	logger    *zap.Logger
}

var _ domain.RecoveryService = (*RecoveryService)(nil)

// NewRecoveryService creates a new recovery service
func NewRecoveryService(deps RecoveryDeps, policy domain.RecoveryPolicy, logger *zap.Logger) (*RecoveryService, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Store == nil:
		return nil, errors.New("recovery: process store is required")
	case deps.Resolver == nil:
		return nil, errors.New("recovery: factor resolver is required")
	case deps.Accounts == nil:
		return nil, errors.New("recovery: account store is required")
	case deps.Questions == nil:
		return nil, errors.New("recovery: secret question store is required")
	case deps.Channel == nil:
		return nil, errors.New("recovery: notification channel is required")
	case deps.Tokens == nil || deps.Pins == nil || deps.Hasher == nil:
		return nil, errors.New("recovery: token generator, pin generator and hasher are required")
	case policy.RequireCaptcha && deps.Captcha == nil:
		return nil, errors.New("recovery: captcha verifier is required by policy")
	}
	if deps.Clock == nil {
		deps.Clock = domain.SystemClock{}
	}
	if deps.Incidents == nil {
		deps.Incidents = nopIncidentLog{}
	}

	return &RecoveryService{
		store:     deps.Store,
		resolver:  deps.Resolver,
		accounts:  deps.Accounts,
		captcha:   deps.Captcha,
		tokens:    deps.Tokens,
		incidents: deps.Incidents,
		clock:     deps.Clock,
		pins:      NewPinManager(deps.Pins, deps.Hasher, deps.Channel, policy, logger),
		questions: NewQuestionVerifier(deps.Questions, logger),
		policy:    policy,
		logger:    logger,
	}, nil
}

// Start resolves the claimed identity and allocates a process token. With
// membership concealment on, unknown and blocked identities get a token of the
// same shape, after the same amount of work.
func (s *RecoveryService) Start(ctx context.Context, req domain.StartRequest) (string, error) {
	claim := strings.TrimSpace(req.Identity)
	if claim == "" {
		return "", domain.ErrIdentityRequired
	}

	hint := domain.InferFactorType(claim)
	if req.FactorType != "" {
		t, err := domain.ParseFactorType(req.FactorType)
		if err != nil {
			return "", err
		}
		hint = t
	}

	if s.policy.RequireCaptcha {
		if err := s.captcha.Verify(ctx, req.CaptchaProof); err != nil {
			if errors.Is(err, domain.ErrCaptchaRejected) {
				s.incident(ctx, domain.CategoryCaptcha, domain.SubtypeRejected, "captcha proof rejected", "", "")
				return "", domain.ErrCaptchaInvalid
			}
			return "", s.internal("verify captcha", err)
		}
	}

	defer s.padLatency(ctx, time.Now(), s.policy.StartMinDuration)
	return s.start(ctx, claim, hint)
}

func (s *RecoveryService) start(ctx context.Context, claim string, hint domain.FactorType) (string, error) {
	token, err := s.tokens.Generate()
	if err != nil {
		return "", s.internal("generate token", err)
	}
	process := domain.NewRecoveryProcess(token, s.clock.Now(), s.policy.ProcessTTL)

	factor, err := s.resolver.Resolve(ctx, claim, hint)
	if err != nil {
		if !errors.Is(err, domain.ErrFactorNotFound) {
			s.incident(ctx, domain.CategoryFactor, domain.SubtypeResolutionFailure, "factor resolution failed", "", token)
			return "", s.internal("resolve factor", err)
		}
		return s.unknownIdentity(ctx, process)
	}

	status, err := s.accounts.GetStatus(ctx, factor.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountMissing) {
			return s.unknownIdentity(ctx, process)
		}
		return "", s.internal("get account status", err)
	}
	if status.IsBlocked(s.policy.AllowResetWhenSuspended) {
		s.incident(ctx, domain.CategoryAccount, domain.SubtypeBlocked, "recovery requested for blocked account", factor.AccountID, token)
		if !s.policy.ConcealMembership || status.DoNotConceal {
			return "", domain.ErrAccountBlocked
		}
		return s.createDecoy(ctx, process)
	}

	registered, err := s.resolver.ListFactors(ctx, factor.AccountID)
	if err != nil {
		return "", s.internal("list factors", err)
	}

	process.AccountID = factor.AccountID
	s.seedFactors(process, *factor, registered)

	if err := s.store.Create(ctx, process); err != nil {
		return "", s.internal("create process", err)
	}

	s.logger.Info("recovery process started",
		zap.String("token", domain.TokenPrefix(token)),
		zap.String("account_id", factor.AccountID),
		zap.Strings("pending", factorNames(process.Pending)))
	return token, nil
}

func (s *RecoveryService) unknownIdentity(ctx context.Context, process *domain.RecoveryProcess) (string, error) {
	s.incident(ctx, domain.CategoryFactor, domain.SubtypeNotFound, "no account matches the claimed identity", "", process.Token)
	if !s.policy.ConcealMembership {
		return "", domain.ErrAccountNotFound
	}
	return s.createDecoy(ctx, process)
}

// createDecoy persists a process that can never progress, so the store sees
// the same write as for a real account.
func (s *RecoveryService) createDecoy(ctx context.Context, process *domain.RecoveryProcess) (string, error) {
	process.Decoy = true
	if err := s.store.Create(ctx, process); err != nil {
		return "", s.internal("create process", err)
	}
	return process.Token, nil
}

// seedFactors fills the pending set with the account's confirmed factors that
// the policy allows, always including the factor the identity resolved to.
func (s *RecoveryService) seedFactors(process *domain.RecoveryProcess, resolved domain.AccountFactor, registered []domain.AccountFactor) {
	values := make(map[domain.FactorType]string, len(registered)+1)
	for _, f := range registered {
		if f.Confirmed && f.Value != "" {
			values[f.Type] = f.Value
		}
	}
	values[resolved.Type] = resolved.Value

	for _, t := range s.policy.RecoveryFactors {
		if v, ok := values[t]; ok {
			process.Pending = process.Pending.With(t)
			process.Factors[t] = v
		}
	}
	if !process.Pending.Has(resolved.Type) {
		process.Pending = process.Pending.With(resolved.Type)
		process.Factors[resolved.Type] = resolved.Value
	}
}

// padLatency holds the caller until floor has elapsed since startedAt.
func (s *RecoveryService) padLatency(ctx context.Context, startedAt time.Time, floor time.Duration) {
	remaining := floor - time.Since(startedAt)
	if remaining <= 0 {
		return
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// GetProcessStatus returns the masked status of a process that has at least
// one confirmed factor.
func (s *RecoveryService) GetProcessStatus(ctx context.Context, token string) (*domain.ProcessStatus, error) {
	if token == "" {
		return nil, domain.ErrTokenRequired
	}
	process, err := s.getActiveProcess(ctx, token, true)
	if err != nil {
		return nil, err
	}
	return process.Status(s.clock.Now(), s.policy), nil
}

// SendPin issues a pin for factorType and dispatches it. Every refusal is
// silent; the caller cannot tell a sent pin from an ignored request, neither
// by the result nor by the latency.
func (s *RecoveryService) SendPin(ctx context.Context, token, factorType string) error {
	if token == "" {
		return domain.ErrTokenRequired
	}
	factor, err := domain.ParseFactorType(factorType)
	if err != nil {
		return err
	}
	defer s.padLatency(ctx, time.Now(), s.policy.PinMinDuration)

	var issued *issuedPin
	process, err := s.mutate(ctx, token, false, func(p *domain.RecoveryProcess, now time.Time) error {
		var reason string
		var perr error
		issued, reason, perr = s.pins.Prepare(p, factor, now)
		if perr != nil {
			return perr
		}
		if reason != "" {
			s.incident(ctx, domain.CategoryPin, reason, "pin request ignored", p.AccountID, token)
			return errSilent
		}
		return nil
	})
	switch {
	case errors.Is(err, errSilent):
		return nil
	case errors.Is(err, domain.ErrProcessNotFound):
		s.notFound(ctx, "send pin", token)
		return nil
	case err != nil:
		return s.internal("send pin", err)
	}

	if err := s.pins.Dispatch(ctx, process, issued); err != nil {
		s.incident(ctx, domain.CategoryPin, domain.SubtypeDispatchFailed, "pin dispatch failed", process.AccountID, token)
		s.rollbackPin(ctx, token, issued.hash)
		return nil
	}

	s.logger.Info("pin dispatched",
		zap.String("token", domain.TokenPrefix(token)),
		zap.String("factor", string(factor)))
	return nil
}

func (s *RecoveryService) rollbackPin(ctx context.Context, token, pinHash string) {
	_, err := s.mutate(ctx, token, false, func(p *domain.RecoveryProcess, _ time.Time) error {
		if !p.RollbackPin(pinHash) {
			return errSilent
		}
		return nil
	})
	if err != nil && !errors.Is(err, errSilent) && !errors.Is(err, domain.ErrProcessNotFound) {
		s.logger.Error("failed to roll back undelivered pin",
			zap.String("token", domain.TokenPrefix(token)),
			zap.Error(err))
	}
}

// VerifyPin checks pin against the pin in flight. A wrong pin consumes one
// attempt; exhausting the budget aborts the process.
func (s *RecoveryService) VerifyPin(ctx context.Context, token, pin string) (bool, error) {
	if token == "" {
		return false, domain.ErrTokenRequired
	}
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return false, domain.ErrPinRequired
	}
	defer s.padLatency(ctx, time.Now(), s.policy.PinMinDuration)

	var outcome pinOutcome
	process, err := s.mutate(ctx, token, false, func(p *domain.RecoveryProcess, now time.Time) error {
		outcome = s.pins.Verify(p, pin, now)
		if outcome == pinNone || outcome == pinExpired {
			return errSilent
		}
		return nil
	})
	switch {
	case errors.Is(err, errSilent):
		return false, nil
	case errors.Is(err, domain.ErrProcessNotFound):
		s.notFound(ctx, "verify pin", token)
		return false, nil
	case err != nil:
		return false, s.internal("verify pin", err)
	}

	switch outcome {
	case pinMatched:
		s.logger.Info("factor confirmed",
			zap.String("token", domain.TokenPrefix(token)),
			zap.String("state", string(process.State)))
		return true, nil
	case pinAborted:
		s.incident(ctx, domain.CategoryProcess, domain.SubtypeAttemptsExceeded, "pin attempts exceeded", process.AccountID, token)
	}
	return false, nil
}

// AbortProcess ends the process. Unknown and already finished tokens are
// accepted silently.
func (s *RecoveryService) AbortProcess(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrTokenRequired
	}
	process, err := s.mutate(ctx, token, false, func(p *domain.RecoveryProcess, _ time.Time) error {
		p.Abort()
		return nil
	})
	switch {
	case errors.Is(err, domain.ErrProcessNotFound):
		s.notFound(ctx, "abort", token)
		return nil
	case err != nil:
		return s.internal("abort process", err)
	}
	s.incident(ctx, domain.CategoryProcess, domain.SubtypeAborted, "recovery process aborted", process.AccountID, token)
	return nil
}

// ListQuestions returns the account's secret questions once a factor is
// confirmed.
func (s *RecoveryService) ListQuestions(ctx context.Context, token string) ([]domain.SecretQuestion, error) {
	if token == "" {
		return nil, domain.ErrTokenRequired
	}
	process, err := s.getActiveProcess(ctx, token, true)
	if err != nil {
		return nil, err
	}
	questions, err := s.questions.List(ctx, process.AccountID)
	if err != nil {
		return nil, s.internal("list questions", err)
	}
	return questions, nil
}

// AnswerQuestion checks one answer. A wrong answer consumes one attempt.
func (s *RecoveryService) AnswerQuestion(ctx context.Context, token, questionID, answer string) (bool, error) {
	if token == "" {
		return false, domain.ErrTokenRequired
	}
	if questionID == "" {
		return false, domain.ErrInvalidField
	}
	if answer == "" {
		return false, domain.ErrAnswerRequired
	}

	return s.answer(ctx, token, func(accountID string) (bool, []string, []string, error) {
		ok, required, err := s.questions.CheckOne(ctx, accountID, questionID, answer)
		return ok, required, []string{questionID}, err
	})
}

// AnswerAllQuestions checks a complete answer set in one call. The result
// does not reveal which answer was wrong.
func (s *RecoveryService) AnswerAllQuestions(ctx context.Context, token string, answers []domain.SecretQuestionAnswer) (bool, error) {
	if token == "" {
		return false, domain.ErrTokenRequired
	}
	if len(answers) == 0 {
		return false, domain.ErrAnswerRequired
	}
	for _, a := range answers {
		if a.QuestionID == "" {
			return false, domain.ErrInvalidField
		}
		if a.Answer == "" {
			return false, domain.ErrAnswerRequired
		}
	}

	return s.answer(ctx, token, func(accountID string) (bool, []string, []string, error) {
		ok, required, err := s.questions.CheckAll(ctx, accountID, answers)
		return ok, required, required, err
	})
}

type answerCheck func(accountID string) (ok bool, required, passed []string, err error)

func (s *RecoveryService) answer(ctx context.Context, token string, check answerCheck) (bool, error) {
	process, err := s.getActiveProcess(ctx, token, true)
	if errors.Is(err, domain.ErrProcessNotFound) {
		s.notFound(ctx, "answer question", token)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if process.State != domain.StateQuestionsPending {
		s.incident(ctx, domain.CategoryProcess, domain.SubtypeWrongState, "question answered outside the question stage", process.AccountID, token)
		return false, nil
	}

	ok, required, passed, err := check(process.AccountID)
	if err != nil {
		return false, s.internal("check answer", err)
	}
	if ok && len(required) == 0 {
		ok = false
	}

	var aborted bool
	process, err = s.mutate(ctx, token, true, func(p *domain.RecoveryProcess, _ time.Time) error {
		aborted = false
		if p.State != domain.StateQuestionsPending {
			return errSilent
		}
		if ok {
			p.PassQuestions(passed, required)
			return nil
		}
		aborted = p.RecordFailedAttempt(s.policy)
		return nil
	})
	switch {
	case errors.Is(err, errSilent), errors.Is(err, domain.ErrProcessNotFound):
		return false, nil
	case err != nil:
		return false, s.internal("record answer", err)
	}
	if aborted {
		s.incident(ctx, domain.CategoryProcess, domain.SubtypeAttemptsExceeded, "question attempts exceeded", process.AccountID, token)
	}
	return ok, nil
}

// SetNewPassword completes a process that is ready for reset and writes the
// new password. Only one concurrent caller can win.
func (s *RecoveryService) SetNewPassword(ctx context.Context, token, newPassword string) (bool, error) {
	if token == "" {
		return false, domain.ErrTokenRequired
	}
	if newPassword == "" {
		return false, domain.ErrPasswordRequired
	}
	if len(newPassword) < s.policy.MinPasswordLength {
		return false, domain.ErrPasswordTooShort
	}

	process, err := s.mutate(ctx, token, true, func(p *domain.RecoveryProcess, _ time.Time) error {
		if !p.ReadyForReset(s.policy) {
			s.incident(ctx, domain.CategoryProcess, domain.SubtypeWrongState, "password reset before the process was ready", p.AccountID, token)
			return errSilent
		}
		p.Complete()
		return nil
	})
	switch {
	case errors.Is(err, errSilent):
		return false, nil
	case errors.Is(err, domain.ErrProcessNotFound):
		s.notFound(ctx, "set new password", token)
		return false, nil
	case err != nil:
		return false, s.internal("complete process", err)
	}

	if err := s.accounts.SetPassword(ctx, process.AccountID, newPassword); err != nil {
		s.incident(ctx, domain.CategoryAccount, domain.SubtypePasswordRejected, "password update failed after completion", process.AccountID, token)
		return false, s.internal("set password", err)
	}

	s.incident(ctx, domain.CategoryProcess, domain.SubtypeCompleted, "password reset completed", process.AccountID, token)
	s.logger.Info("password reset completed",
		zap.String("token", domain.TokenPrefix(token)),
		zap.String("account_id", process.AccountID))
	return true, nil
}

// getActiveProcess loads a process that operations may act on. Decoys,
// terminal and expired processes are all reported as not found. With
// confirmedOnly, so are processes without a confirmed factor.
func (s *RecoveryService) getActiveProcess(ctx context.Context, token string, confirmedOnly bool) (*domain.RecoveryProcess, error) {
	process, err := s.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrProcessNotFound) {
			return nil, domain.ErrProcessNotFound
		}
		return nil, s.internal("get process", err)
	}
	if process.Decoy || !process.IsActive(s.clock.Now()) {
		return nil, domain.ErrProcessNotFound
	}
	if confirmedOnly && !process.HasConfirmedFactor() {
		return nil, domain.ErrProcessNotFound
	}
	return process, nil
}

// mutate applies fn to a fresh copy of the process and writes it back with a
// version check, retrying on conflicts.
func (s *RecoveryService) mutate(ctx context.Context, token string, confirmedOnly bool, fn func(p *domain.RecoveryProcess, now time.Time) error) (*domain.RecoveryProcess, error) {
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		process, err := s.getActiveProcess(ctx, token, confirmedOnly)
		if err != nil {
			return nil, err
		}
		if err := fn(process, s.clock.Now()); err != nil {
			return process, err
		}

		err = s.store.Update(ctx, process)
		switch {
		case err == nil:
			return process, nil
		case errors.Is(err, domain.ErrProcessConflict):
			s.logger.Debug("process update conflict, retrying",
				zap.String("token", domain.TokenPrefix(token)),
				zap.Int("attempt", attempt+1))
			continue
		case errors.Is(err, domain.ErrProcessNotFound):
			return nil, domain.ErrProcessNotFound
		default:
			return nil, err
		}
	}
	return nil, domain.ErrProcessConflict
}

func (s *RecoveryService) notFound(ctx context.Context, operation, token string) {
	s.incident(ctx, domain.CategoryProcess, domain.SubtypeNotFound, operation+" on unknown or inactive process", "", token)
}

func (s *RecoveryService) incident(ctx context.Context, category domain.IncidentCategory, subtype, message, accountID, token string) {
	incident := domain.NewIncident(ctx, category, subtype, message)
	incident.AccountID = accountID
	incident.TokenPrefix = domain.TokenPrefix(token)
	s.incidents.Log(ctx, incident)
}

// internal logs err and returns an opaque error. Errors the engine already
// produced pass through unchanged.
func (s *RecoveryService) internal(operation string, err error) error {
	var rerr *domain.RecoveryError
	if errors.As(err, &rerr) {
		return rerr
	}
	s.logger.Error("recovery operation failed",
		zap.String("operation", operation),
		zap.Error(err))
	return domain.ErrInternal
}

func factorNames(set domain.FactorSet) []string {
	names := make([]string, 0, len(set))
	for _, t := range set {
		names = append(names, string(t))
	}
	return names
}

type nopIncidentLog struct{}

func (nopIncidentLog) Log(context.Context, domain.Incident) {}
