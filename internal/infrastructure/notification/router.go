package notification

import (
	"context"
	"fmt"

	"github.com/manorfm/recoveryM/internal/domain"
)

// Router sends each pin through the channel bound to its factor type
type Router struct {
	channels map[domain.FactorType]domain.NotificationChannel
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{channels: make(map[domain.FactorType]domain.NotificationChannel)}
}

// Bind registers channel for factor type t
func (r *Router) Bind(t domain.FactorType, channel domain.NotificationChannel) *Router {
	r.channels[t] = channel
	return r
}

// Dispatch implements domain.NotificationChannel
func (r *Router) Dispatch(ctx context.Context, factor domain.AccountFactor, payload domain.PinPayload) error {
	channel, ok := r.channels[factor.Type]
	if !ok {
		return fmt.Errorf("no notification channel for %s factor", factor.Type)
	}
	return channel.Dispatch(ctx, factor, payload)
}
