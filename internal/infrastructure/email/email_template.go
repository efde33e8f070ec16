package email

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"text/template"
	"time"

	"github.com/manorfm/recoveryM/internal/domain"
	"go.uber.org/zap"
)

// Sender delivers a rendered email
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

const pinSubject = "Your password reset code"

var pinTemplate = template.Must(template.New("pin").Parse(`
Hi there!

We received a request to reset your password. To proceed, please use this code:
{{.Pin}}

This code will expire in {{.Minutes}} minutes.
{{if .AbortURL}}
If you didn't request a password reset, cancel it here:
{{.AbortURL}}
{{else}}
If you didn't request a password reset, please ignore this email.
{{end}}
Stay secure,
The Team
`))

// EmailTemplate is the pin notification channel for email factors
type EmailTemplate struct {
	sender Sender
	logger *zap.Logger
}

// NewEmailTemplate creates a new email pin channel
func NewEmailTemplate(sender Sender, logger *zap.Logger) *EmailTemplate {
	return &EmailTemplate{
		sender: sender,
		logger: logger,
	}
}

// Dispatch renders the pin email and sends it to the factor address
func (t *EmailTemplate) Dispatch(ctx context.Context, factor domain.AccountFactor, payload domain.PinPayload) error {
	if factor.Type != domain.FactorEmail {
		return fmt.Errorf("email channel cannot deliver to %s factor", factor.Type)
	}

	body, err := renderPin(payload, time.Now())
	if err != nil {
		t.logger.Error("failed to render pin email", zap.Error(err))
		return err
	}
	return t.sender.Send(ctx, factor.Value, pinSubject, body)
}

func renderPin(payload domain.PinPayload, now time.Time) (string, error) {
	minutes := int(math.Ceil(payload.ExpiresAt.Sub(now).Minutes()))
	if minutes < 1 {
		minutes = 1
	}

	var buf bytes.Buffer
	err := pinTemplate.Execute(&buf, struct {
		Pin      string
		Minutes  int
		AbortURL string
	}{payload.Pin, minutes, payload.AbortURL})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
