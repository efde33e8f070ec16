package email

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/manorfm/recoveryM/internal/domain"
	"github.com/manorfm/recoveryM/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockSMTPClient is a mock implementation of SMTPClient
type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) SendMail(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	args := m.Called(addr, a, from, to, msg)
	return args.Error(0)
}

func smtpConfig() *config.Config {
	return &config.Config{
		SMTPHost:     "smtp.example.com",
		SMTPPort:     587,
		SMTPUsername: "user",
		SMTPPassword: "pass",
		SMTPFrom:     "noreply@example.com",
	}
}

func TestEmailService_Send(t *testing.T) {
	tests := []struct {
		name          string
		email         string
		config        *config.Config
		mockSetup     func(*MockSMTPClient)
		expectedError error
	}{
		{
			name:   "successful email send",
			email:  "test@example.com",
			config: smtpConfig(),
			mockSetup: func(m *MockSMTPClient) {
				m.On("SendMail",
					"smtp.example.com:587",
					mock.Anything,
					"noreply@example.com",
					[]string{"test@example.com"},
					mock.MatchedBy(func(msg []byte) bool {
						return bytes.Contains(msg, []byte("Subject: Test Subject\r\n"))
					}),
				).Return(nil)
			},
			expectedError: nil,
		},
		{
			name:          "invalid email address",
			email:         "invalid-email",
			config:        smtpConfig(),
			mockSetup:     func(m *MockSMTPClient) {},
			expectedError: ErrInvalidEmail,
		},
		{
			name:   "smtp error",
			email:  "test@example.com",
			config: smtpConfig(),
			mockSetup: func(m *MockSMTPClient) {
				m.On("SendMail", "smtp.example.com:587", mock.Anything, "noreply@example.com",
					[]string{"test@example.com"}, mock.Anything).Return(errors.New("smtp error"))
			},
			expectedError: errors.New("smtp error"),
		},
		{
			name:          "missing configuration",
			email:         "test@example.com",
			config:        &config.Config{SMTPPort: 587},
			mockSetup:     func(m *MockSMTPClient) {},
			expectedError: ErrMissingSMTPConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSMTP := new(MockSMTPClient)
			tt.mockSetup(mockSMTP)

			service := &EmailService{
				config:     tt.config,
				logger:     zap.NewNop(),
				smtpClient: mockSMTP,
			}

			ctx := domain.WithRequestID(context.Background(), "test-request-id")
			err := service.Send(ctx, tt.email, "Test Subject", "body")

			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Equal(t, tt.expectedError.Error(), err.Error())
			} else {
				assert.NoError(t, err)
			}
			mockSMTP.AssertExpectations(t)
		})
	}
}

func TestEmailService_SendWithoutAuth(t *testing.T) {
	cfg := smtpConfig()
	cfg.SMTPUsername = ""
	mockSMTP := new(MockSMTPClient)
	mockSMTP.On("SendMail", "smtp.example.com:587", nil, "noreply@example.com",
		[]string{"test@example.com"}, mock.Anything).Return(nil)

	service := &EmailService{config: cfg, logger: zap.NewNop(), smtpClient: mockSMTP}

	assert.NoError(t, service.Send(context.Background(), "test@example.com", "s", "b"))
	mockSMTP.AssertExpectations(t)
}
