package notification

import (
	"context"
	"testing"
	"time"

	"github.com/manorfm/recoveryM/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockPublisher is a mock implementation of rabbitmq.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	args := m.Called(ctx, exchange, routingKey, body)
	return args.Error(0)
}

func (m *MockPublisher) Close() {}

// MockChannel is a mock implementation of domain.NotificationChannel
type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) Dispatch(ctx context.Context, factor domain.AccountFactor, payload domain.PinPayload) error {
	args := m.Called(ctx, factor, payload)
	return args.Error(0)
}

func TestSMSChannel_Dispatch(t *testing.T) {
	expires := time.Date(2026, 3, 1, 9, 10, 0, 0, time.UTC)
	phone := domain.AccountFactor{AccountID: "acc-1", Type: domain.FactorPhone, Value: "+15550001234"}
	payload := domain.PinPayload{Pin: "123456", ExpiresAt: expires, AbortURL: "https://x/abort?token=t"}

	t.Run("publishes the pin", func(t *testing.T) {
		ctx := domain.WithRequestID(context.Background(), "req-1")
		publisher := new(MockPublisher)
		publisher.On("Publish", ctx, "notifications", SMSRoutingKey, SMSMessage{
			To:        "+15550001234",
			Pin:       "123456",
			ExpiresAt: expires,
			AbortURL:  "https://x/abort?token=t",
			RequestID: "req-1",
		}).Return(nil)

		channel := NewSMSChannel(publisher, "notifications", zap.NewNop())
		assert.NoError(t, channel.Dispatch(ctx, phone, payload))
		publisher.AssertExpectations(t)
	})

	t.Run("publish failure", func(t *testing.T) {
		publisher := new(MockPublisher)
		publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError)

		channel := NewSMSChannel(publisher, "notifications", zap.NewNop())
		assert.ErrorIs(t, channel.Dispatch(context.Background(), phone, payload), assert.AnError)
	})

	t.Run("rejects email factors", func(t *testing.T) {
		publisher := new(MockPublisher)
		channel := NewSMSChannel(publisher, "notifications", zap.NewNop())

		email := domain.AccountFactor{AccountID: "acc-1", Type: domain.FactorEmail, Value: "jane@example.com"}
		assert.Error(t, channel.Dispatch(context.Background(), email, payload))
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRouter_Dispatch(t *testing.T) {
	ctx := context.Background()
	payload := domain.PinPayload{Pin: "123456"}
	email := domain.AccountFactor{Type: domain.FactorEmail, Value: "jane@example.com"}
	phone := domain.AccountFactor{Type: domain.FactorPhone, Value: "+15550001234"}

	emailChannel := new(MockChannel)
	emailChannel.On("Dispatch", ctx, email, payload).Return(nil)

	router := NewRouter().Bind(domain.FactorEmail, emailChannel)

	assert.NoError(t, router.Dispatch(ctx, email, payload))
	assert.Error(t, router.Dispatch(ctx, phone, payload))
	emailChannel.AssertExpectations(t)
}
