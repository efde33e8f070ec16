package incident

import (
	"context"

	"github.com/manorfm/recoveryM/internal/domain"
	"go.uber.org/zap"
)

// NopSink discards incidents
type NopSink struct{}

func (NopSink) Emit(context.Context, domain.Incident) {}

// LogSink writes incidents to the structured log
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("incident")}
}

func (s *LogSink) Emit(_ context.Context, incident domain.Incident) {
	s.logger.Info(incident.Message,
		zap.String("incident_id", incident.ID.String()),
		zap.String("category", string(incident.Category)),
		zap.String("subtype", incident.Subtype),
		zap.String("account_id", incident.AccountID),
		zap.String("token_prefix", incident.TokenPrefix),
		zap.String("request_id", incident.RequestID),
		zap.String("client_ip", incident.ClientIP),
		zap.Time("occurred_at", incident.OccurredAt),
	)
}

// RepositorySink persists incidents. Save failures are logged and dropped.
type RepositorySink struct {
	repo   domain.IncidentRepository
	logger *zap.Logger
}

func NewRepositorySink(repo domain.IncidentRepository, logger *zap.Logger) *RepositorySink {
	return &RepositorySink{repo: repo, logger: logger}
}

func (s *RepositorySink) Emit(ctx context.Context, incident domain.Incident) {
	if err := s.repo.Save(ctx, incident); err != nil {
		s.logger.Error("failed to persist incident",
			zap.String("incident_id", incident.ID.String()),
			zap.Error(err))
	}
}

// FanOut emits every incident to each sink in order
type FanOut []Sink

func (f FanOut) Emit(ctx context.Context, incident domain.Incident) {
	for _, sink := range f {
		sink.Emit(ctx, incident)
	}
}
