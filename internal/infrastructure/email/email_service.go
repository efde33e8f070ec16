package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/smtp"

	"github.com/manorfm/recoveryM/internal/domain"
	"github.com/manorfm/recoveryM/internal/infrastructure/config"
	"go.uber.org/zap"
)

var (
	ErrInvalidEmail             = errors.New("invalid email address")
	ErrMissingSMTPConfiguration = errors.New("missing SMTP configuration")
)

// SMTPClient sends a raw message. It matches smtp.SendMail.
type SMTPClient interface {
	SendMail(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

type netSMTPClient struct{}

func (netSMTPClient) SendMail(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	return smtp.SendMail(addr, a, from, to, msg)
}

// EmailService delivers plain text mail through an SMTP relay
type EmailService struct {
	config     *config.Config
	logger     *zap.Logger
	smtpClient SMTPClient
}

// NewEmailService creates a new email service
func NewEmailService(cfg *config.Config, logger *zap.Logger) *EmailService {
	return &EmailService{
		config:     cfg,
		logger:     logger,
		smtpClient: netSMTPClient{},
	}
}

func (s *EmailService) validateConfig() error {
	if s.config.SMTPHost == "" || s.config.SMTPFrom == "" || s.config.SMTPPort == 0 {
		return ErrMissingSMTPConfiguration
	}
	return nil
}

// Send delivers body to a single recipient
func (s *EmailService) Send(ctx context.Context, to, subject, body string) error {
	if err := s.validateConfig(); err != nil {
		s.logger.Error("SMTP is not configured")
		return err
	}
	if _, err := mail.ParseAddress(to); err != nil {
		return ErrInvalidEmail
	}

	message := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s", s.config.SMTPFrom, to, subject, body)

	var auth smtp.Auth
	if s.config.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
	}

	fields := []zap.Field{zap.String("subject", subject)}
	if requestID, ok := domain.GetRequestID(ctx); ok {
		fields = append(fields, zap.String("request_id", requestID))
	}

	err := s.smtpClient.SendMail(
		fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort),
		auth,
		s.config.SMTPFrom,
		[]string{to},
		[]byte(message),
	)
	if err != nil {
		s.logger.Error("Failed to send email", append(fields, zap.Error(err))...)
		return err
	}

	s.logger.Info("Email sent successfully", fields...)
	return nil
}
