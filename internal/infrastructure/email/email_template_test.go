package email

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/manorfm/recoveryM/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockEmailSender is a mock implementation of Sender
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

func TestEmailTemplate_Dispatch(t *testing.T) {
	ctx := context.Background()
	factor := domain.AccountFactor{AccountID: "acc-1", Type: domain.FactorEmail, Value: "jane@example.com"}
	payload := domain.PinPayload{
		Pin:       "482913",
		ExpiresAt: time.Now().Add(10 * time.Minute),
		AbortURL:  "https://accounts.example.com/api/v1/recovery/abort?token=abc",
	}

	t.Run("sends the rendered pin", func(t *testing.T) {
		sender := new(MockEmailSender)
		sender.On("Send", ctx, "jane@example.com", pinSubject, mock.MatchedBy(func(body string) bool {
			return strings.Contains(body, "482913") &&
				strings.Contains(body, "10 minutes") &&
				strings.Contains(body, payload.AbortURL)
		})).Return(nil)

		channel := NewEmailTemplate(sender, zap.NewNop())
		require.NoError(t, channel.Dispatch(ctx, factor, payload))
		sender.AssertExpectations(t)
	})

	t.Run("rejects other factor types", func(t *testing.T) {
		sender := new(MockEmailSender)
		channel := NewEmailTemplate(sender, zap.NewNop())

		phone := factor
		phone.Type = domain.FactorPhone
		assert.Error(t, channel.Dispatch(ctx, phone, payload))
		sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("sender error is returned", func(t *testing.T) {
		sender := new(MockEmailSender)
		sender.On("Send", ctx, "jane@example.com", pinSubject, mock.Anything).Return(assert.AnError)

		channel := NewEmailTemplate(sender, zap.NewNop())
		assert.Equal(t, assert.AnError, channel.Dispatch(ctx, factor, payload))
	})
}

func TestRenderPin(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	body, err := renderPin(domain.PinPayload{Pin: "1234", ExpiresAt: now.Add(90 * time.Second)}, now)
	require.NoError(t, err)
	assert.Contains(t, body, "1234")
	assert.Contains(t, body, "2 minutes")
	assert.Contains(t, body, "please ignore this email")
}
