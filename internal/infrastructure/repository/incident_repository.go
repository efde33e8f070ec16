package repository

import (
	"context"
	"time"

	"github.com/manorfm/recoveryM/internal/domain"
	"github.com/manorfm/recoveryM/internal/infrastructure/database"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// IncidentRepository implements domain.IncidentRepository on PostgreSQL
type IncidentRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewIncidentRepository creates a new incident repository
func NewIncidentRepository(db *database.Postgres, logger *zap.Logger) *IncidentRepository {
	return &IncidentRepository{
		db:     db,
		logger: logger,
	}
}

// Save stores an incident
func (r *IncidentRepository) Save(ctx context.Context, incident domain.Incident) error {
	err := r.db.Exec(ctx, `
		INSERT INTO recovery_incidents (id, category, subtype, message, account_id, token_prefix, request_id, client_ip, occurred_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9)
	`, incident.ID.String(), string(incident.Category), incident.Subtype, incident.Message,
		incident.AccountID, incident.TokenPrefix, incident.RequestID, incident.ClientIP, incident.OccurredAt)
	if err != nil {
		return domain.ErrDatabaseQuery
	}
	return nil
}

// ListRecent returns the newest incidents first
func (r *IncidentRepository) ListRecent(ctx context.Context, limit int) ([]domain.Incident, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, category, subtype, message,
		       COALESCE(account_id, ''), COALESCE(token_prefix, ''),
		       COALESCE(request_id, ''), COALESCE(client_ip, ''), occurred_at
		FROM recovery_incidents
		ORDER BY occurred_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		r.logger.Error("failed to list incidents", zap.Error(err))
		return nil, domain.ErrDatabaseQuery
	}
	defer rows.Close()

	incidents := []domain.Incident{}
	for rows.Next() {
		var (
			i        domain.Incident
			id       string
			category string
		)
		if err := rows.Scan(&id, &category, &i.Subtype, &i.Message, &i.AccountID, &i.TokenPrefix, &i.RequestID, &i.ClientIP, &i.OccurredAt); err != nil {
			r.logger.Error("failed to scan incident", zap.Error(err))
			return nil, domain.ErrDatabaseQuery
		}
		parsed, err := ulid.Parse(id)
		if err != nil {
			r.logger.Warn("skipping incident with invalid id", zap.String("id", id))
			continue
		}
		i.ID = parsed
		i.Category = domain.IncidentCategory(category)
		incidents = append(incidents, i)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrDatabaseQuery
	}

	return incidents, nil
}

// DeleteBefore removes incidents older than before
func (r *IncidentRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.ExecRaw(ctx, `DELETE FROM recovery_incidents WHERE occurred_at < $1`, before)
	if err != nil {
		r.logger.Error("failed to delete incidents", zap.Error(err))
		return 0, domain.ErrDatabaseQuery
	}
	return tag.RowsAffected(), nil
}
