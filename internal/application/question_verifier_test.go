package application

import (
	"context"
	"errors"
	"testing"

	"github.com/manorfm/recoveryM/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var accountQuestions = []domain.SecretQuestion{
	{ID: "q1", Text: "First pet?"},
	{ID: "q2", Text: "Birth city?"},
}

func questionStore() *MockSecretQuestionStore {
	store := new(MockSecretQuestionStore)
	store.On("ListQuestions", mock.Anything, "acc-1").Return(accountQuestions, nil)
	store.On("CheckAnswer", mock.Anything, "acc-1", "q1", "rex").Return(true, nil)
	store.On("CheckAnswer", mock.Anything, "acc-1", "q2", "lisbon").Return(true, nil)
	store.On("CheckAnswer", mock.Anything, "acc-1", mock.Anything, mock.Anything).Return(false, nil)
	return store
}

func TestQuestionVerifier_CheckAll(t *testing.T) {
	ctx := context.Background()

	t.Run("all correct", func(t *testing.T) {
		v := NewQuestionVerifier(questionStore(), zap.NewNop())
		ok, required, err := v.CheckAll(ctx, "acc-1", []domain.SecretQuestionAnswer{
			{QuestionID: "q2", Answer: "lisbon"},
			{QuestionID: "q1", Answer: "rex"},
		})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []string{"q1", "q2"}, required)
	})

	t.Run("every answer is evaluated", func(t *testing.T) {
		store := questionStore()
		v := NewQuestionVerifier(store, zap.NewNop())
		ok, _, err := v.CheckAll(ctx, "acc-1", []domain.SecretQuestionAnswer{
			{QuestionID: "q1", Answer: "wrong"},
			{QuestionID: "q2", Answer: "lisbon"},
		})
		require.NoError(t, err)
		assert.False(t, ok)
		store.AssertNumberOfCalls(t, "CheckAnswer", 2)
	})

	t.Run("missing answer", func(t *testing.T) {
		v := NewQuestionVerifier(questionStore(), zap.NewNop())
		ok, _, err := v.CheckAll(ctx, "acc-1", []domain.SecretQuestionAnswer{
			{QuestionID: "q1", Answer: "rex"},
		})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown question id", func(t *testing.T) {
		v := NewQuestionVerifier(questionStore(), zap.NewNop())
		ok, _, err := v.CheckAll(ctx, "acc-1", []domain.SecretQuestionAnswer{
			{QuestionID: "q1", Answer: "rex"},
			{QuestionID: "q2", Answer: "lisbon"},
			{QuestionID: "q9", Answer: "extra"},
		})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("account without questions", func(t *testing.T) {
		store := new(MockSecretQuestionStore)
		store.On("ListQuestions", mock.Anything, "acc-2").Return([]domain.SecretQuestion{}, nil)
		v := NewQuestionVerifier(store, zap.NewNop())

		ok, required, err := v.CheckAll(ctx, "acc-2", []domain.SecretQuestionAnswer{{QuestionID: "q1", Answer: "rex"}})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, required)
	})

	t.Run("store error", func(t *testing.T) {
		store := new(MockSecretQuestionStore)
		store.On("ListQuestions", mock.Anything, "acc-1").Return(nil, assert.AnError)
		v := NewQuestionVerifier(store, zap.NewNop())

		_, _, err := v.CheckAll(ctx, "acc-1", nil)
		assert.Equal(t, assert.AnError, err)
	})
}

func TestQuestionVerifier_CheckOne(t *testing.T) {
	ctx := context.Background()
	v := NewQuestionVerifier(questionStore(), zap.NewNop())

	ok, required, err := v.CheckOne(ctx, "acc-1", "q1", "rex")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"q1", "q2"}, required)

	ok, _, err = v.CheckOne(ctx, "acc-1", "q1", "fido")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _, err = v.CheckOne(ctx, "acc-1", "q9", "rex")
	require.NoError(t, err)
	assert.False(t, ok)
}

func questionPolicy() domain.RecoveryPolicy {
	policy := testPolicy()
	policy.RequireSecretQuestions = true
	return policy
}

func newQuestionHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, questionPolicy())
	// Rebind the question store so each test gets the canned answers.
	h.questions = questionStore()
	h.svc.questions = NewQuestionVerifier(h.questions, zap.NewNop())
	return h
}

func TestRecoveryService_Questions(t *testing.T) {
	ctx := context.Background()

	t.Run("questions hidden before confirmation", func(t *testing.T) {
		h := newQuestionHarness(t)
		h.knownAccount(domain.AccountStatus{AccountID: "acc-1"})
		tok := h.start(t)

		_, err := h.svc.ListQuestions(ctx, tok)
		assert.Equal(t, domain.ErrProcessNotFound, err)

		ok, err := h.svc.AnswerQuestion(ctx, tok, "q1", "rex")
		require.NoError(t, err)
		assert.False(t, ok)
		h.questions.AssertNotCalled(t, "CheckAnswer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("batch answers unlock the reset", func(t *testing.T) {
		h := newQuestionHarness(t)
		h.knownAccount(domain.AccountStatus{AccountID: "acc-1"})
		h.dispatchOK()
		h.accounts.On("SetPassword", mock.Anything, "acc-1", "new-password-1").Return(nil)
		tok := h.start(t)
		require.NoError(t, h.svc.SendPin(ctx, tok, "email"))
		require.True(t, mustVerify(t, h, tok, "111111"))

		status, err := h.svc.GetProcessStatus(ctx, tok)
		require.NoError(t, err)
		assert.Equal(t, domain.StateQuestionsPending, status.State)

		ok, err := h.svc.SetNewPassword(ctx, tok, "new-password-1")
		require.NoError(t, err)
		assert.False(t, ok)

		questions, err := h.svc.ListQuestions(ctx, tok)
		require.NoError(t, err)
		assert.Equal(t, accountQuestions, questions)

		ok, err = h.svc.AnswerAllQuestions(ctx, tok, []domain.SecretQuestionAnswer{
			{QuestionID: "q1", Answer: "rex"},
			{QuestionID: "q2", Answer: "paris"},
		})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 1, h.stored(t, tok).Attempts)

		ok, err = h.svc.AnswerAllQuestions(ctx, tok, []domain.SecretQuestionAnswer{
			{QuestionID: "q1", Answer: "rex"},
			{QuestionID: "q2", Answer: "lisbon"},
		})
		require.NoError(t, err)
		assert.True(t, ok)

		status, err = h.svc.GetProcessStatus(ctx, tok)
		require.NoError(t, err)
		assert.Equal(t, domain.StateReadyForReset, status.State)

		ok, err = h.svc.SetNewPassword(ctx, tok, "new-password-1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("single answers unlock the reset", func(t *testing.T) {
		h := newQuestionHarness(t)
		h.knownAccount(domain.AccountStatus{AccountID: "acc-1"})
		h.dispatchOK()
		tok := h.start(t)
		require.NoError(t, h.svc.SendPin(ctx, tok, "email"))
		require.True(t, mustVerify(t, h, tok, "111111"))

		ok, err := h.svc.AnswerQuestion(ctx, tok, "q1", "rex")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, domain.StateQuestionsPending, h.stored(t, tok).State)

		ok, err = h.svc.AnswerQuestion(ctx, tok, "q2", "lisbon")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, domain.StateReadyForReset, h.stored(t, tok).State)

		// Nothing left to answer.
		ok, err = h.svc.AnswerQuestion(ctx, tok, "q1", "rex")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("wrong answers abort at the threshold", func(t *testing.T) {
		h := newQuestionHarness(t)
		h.knownAccount(domain.AccountStatus{AccountID: "acc-1"})
		h.dispatchOK()
		tok := h.start(t)
		require.NoError(t, h.svc.SendPin(ctx, tok, "email"))
		require.True(t, mustVerify(t, h, tok, "111111"))

		for i := 0; i < 3; i++ {
			ok, err := h.svc.AnswerQuestion(ctx, tok, "q1", "fido")
			require.NoError(t, err)
			assert.False(t, ok)
		}
		assert.True(t, h.incidents.has(domain.CategoryProcess, domain.SubtypeAttemptsExceeded))

		_, err := h.svc.ListQuestions(ctx, tok)
		assert.Equal(t, domain.ErrProcessNotFound, err)
	})

	t.Run("wrong pins and wrong answers share one budget", func(t *testing.T) {
		h := newQuestionHarness(t)
		h.knownAccount(domain.AccountStatus{AccountID: "acc-1"})
		h.dispatchOK()
		tok := h.start(t)
		require.NoError(t, h.svc.SendPin(ctx, tok, "email"))

		require.False(t, mustVerify(t, h, tok, "000000"))
		require.True(t, mustVerify(t, h, tok, "111111"))
		assert.Equal(t, 1, h.stored(t, tok).Attempts)

		ok, err := h.svc.AnswerQuestion(ctx, tok, "q1", "fido")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 2, h.stored(t, tok).Attempts)
		assert.False(t, h.incidents.has(domain.CategoryProcess, domain.SubtypeAttemptsExceeded))

		// Third failure overall reaches MaxAttempts.
		ok, err = h.svc.AnswerAllQuestions(ctx, tok, []domain.SecretQuestionAnswer{
			{QuestionID: "q1", Answer: "rex"},
			{QuestionID: "q2", Answer: "paris"},
		})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.True(t, h.incidents.has(domain.CategoryProcess, domain.SubtypeAttemptsExceeded))

		_, err = h.svc.ListQuestions(ctx, tok)
		assert.Equal(t, domain.ErrProcessNotFound, err)
	})

	t.Run("validation", func(t *testing.T) {
		h := newQuestionHarness(t)

		_, err := h.svc.AnswerQuestion(ctx, "tok", "", "rex")
		assert.Equal(t, domain.ErrInvalidField, err)
		_, err = h.svc.AnswerQuestion(ctx, "tok", "q1", "")
		assert.Equal(t, domain.ErrAnswerRequired, err)
		_, err = h.svc.AnswerAllQuestions(ctx, "tok", nil)
		assert.Equal(t, domain.ErrAnswerRequired, err)
		_, err = h.svc.AnswerAllQuestions(ctx, "tok", []domain.SecretQuestionAnswer{{QuestionID: "q1"}})
		assert.Equal(t, domain.ErrAnswerRequired, err)
	})

	t.Run("question store failure", func(t *testing.T) {
		h := newHarness(t, questionPolicy())
		h.questions.On("ListQuestions", mock.Anything, "acc-1").Return(nil, errors.New("db down"))
		h.knownAccount(domain.AccountStatus{AccountID: "acc-1"})
		h.dispatchOK()
		tok := h.start(t)
		require.NoError(t, h.svc.SendPin(ctx, tok, "email"))
		require.True(t, mustVerify(t, h, tok, "111111"))

		_, err := h.svc.ListQuestions(ctx, tok)
		assert.Equal(t, domain.ErrInternal, err)
		_, err = h.svc.AnswerQuestion(ctx, tok, "q1", "rex")
		assert.Equal(t, domain.ErrInternal, err)
	})
}
