package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/manorfm/recoveryM/internal/domain"
	"github.com/manorfm/recoveryM/internal/infrastructure/messaging/rabbitmq"
	"go.uber.org/zap"
)

// SMSRoutingKey routes pin messages to the SMS gateway consumer
const SMSRoutingKey = "recovery.pin.sms"

// SMSMessage is the event consumed by the SMS gateway
type SMSMessage struct {
	To        string    `json:"to"`
	Pin       string    `json:"pin"`
	ExpiresAt time.Time `json:"expires_at"`
	AbortURL  string    `json:"abort_url,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// SMSChannel hands phone pins to the SMS gateway through the message broker
type SMSChannel struct {
	publisher rabbitmq.Publisher
	exchange  string
	logger    *zap.Logger
}

// NewSMSChannel creates a new SMS pin channel
func NewSMSChannel(publisher rabbitmq.Publisher, exchange string, logger *zap.Logger) *SMSChannel {
	return &SMSChannel{
		publisher: publisher,
		exchange:  exchange,
		logger:    logger,
	}
}

// Dispatch publishes the pin for the factor's phone number
func (c *SMSChannel) Dispatch(ctx context.Context, factor domain.AccountFactor, payload domain.PinPayload) error {
	if factor.Type != domain.FactorPhone {
		return fmt.Errorf("sms channel cannot deliver to %s factor", factor.Type)
	}

	msg := SMSMessage{
		To:        factor.Value,
		Pin:       payload.Pin,
		ExpiresAt: payload.ExpiresAt,
		AbortURL:  payload.AbortURL,
	}
	if requestID, ok := domain.GetRequestID(ctx); ok {
		msg.RequestID = requestID
	}

	if err := c.publisher.Publish(ctx, c.exchange, SMSRoutingKey, msg); err != nil {
		return fmt.Errorf("publish sms: %w", err)
	}
	c.logger.Debug("sms pin published", zap.String("account_id", factor.AccountID))
	return nil
}
