package domain

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// IncidentCategory groups incidents for operators.
type IncidentCategory string

const (
	CategoryFactor  IncidentCategory = "factor"
	CategoryAccount IncidentCategory = "account"
	CategoryProcess IncidentCategory = "process"
	CategoryPin     IncidentCategory = "pin"
	CategoryCaptcha IncidentCategory = "captcha"
)

// Incident subtypes
const (
	SubtypeNotFound          = "not_found"
	SubtypeBlocked           = "blocked"
	SubtypeWrongState        = "wrong_state"
	SubtypeAttemptsExceeded  = "attempts_exceeded"
	SubtypeDispatchFailed    = "dispatch_failed"
	SubtypePinInFlight       = "pin_in_flight"
	SubtypeAborted           = "aborted"
	SubtypeCompleted         = "completed"
	SubtypePasswordRejected  = "password_update_failed"
	SubtypeRejected          = "rejected"
	SubtypeResolutionFailure = "resolution_failed"
)

// Incident is an operational record of a security-relevant outcome.
type Incident struct {
	ID          ulid.ULID        `json:"id"`
	Category    IncidentCategory `json:"category"`
	Subtype     string           `json:"subtype"`
	Message     string           `json:"message"`
	AccountID   string           `json:"account_id,omitempty"`
	TokenPrefix string           `json:"token_prefix,omitempty"`
	RequestID   string           `json:"request_id,omitempty"`
	ClientIP    string           `json:"client_ip,omitempty"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

// NewIncident creates an incident stamped with the request metadata in ctx.
func NewIncident(ctx context.Context, category IncidentCategory, subtype, message string) Incident {
	incident := Incident{
		ID:         ulid.Make(),
		Category:   category,
		Subtype:    subtype,
		Message:    message,
		OccurredAt: time.Now().UTC(),
	}
	if id, ok := GetRequestID(ctx); ok {
		incident.RequestID = id
	}
	if ip, ok := GetClientIP(ctx); ok {
		incident.ClientIP = ip
	}
	return incident
}

// IncidentLog is the best-effort sink for incidents. Implementations must
// not block the caller.
type IncidentLog interface {
	Log(ctx context.Context, incident Incident)
}

// IncidentRepository persists incidents for later inspection.
type IncidentRepository interface {
	Save(ctx context.Context, incident Incident) error
	ListRecent(ctx context.Context, limit int) ([]Incident, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// TokenPrefix shortens a token so it can be logged.
func TokenPrefix(token string) string {
	if len(token) <= 6 {
		return token
	}
	return token[:6]
}
