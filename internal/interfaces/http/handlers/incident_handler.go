package handlers

import (
	"net/http"
	"strconv"

	"github.com/manorfm/recoveryM/internal/domain"
	"github.com/manorfm/recoveryM/internal/interfaces/http/dto"
	"github.com/manorfm/recoveryM/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

const (
	defaultIncidentLimit = 50
	maxIncidentLimit     = 500
)

// IncidentHandler serves the operator incident listing
type IncidentHandler struct {
	repo   domain.IncidentRepository
	logger *zap.Logger
}

func NewIncidentHandler(repo domain.IncidentRepository, logger *zap.Logger) *IncidentHandler {
	return &IncidentHandler{repo: repo, logger: logger}
}

// ListIncidentsHandler godoc
// @Summary List recent recovery incidents
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum number of incidents (1-500)"
// @Success 200 {object} dto.IncidentsResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/incidents [get]
func (h *IncidentHandler) ListIncidentsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultIncidentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxIncidentLimit {
			errors.RespondErrorWithDetails(w, domain.ErrInvalidField, []errors.ErrorDetail{
				{Field: "limit", Message: "limit must be between 1 and 500"},
			})
			return
		}
		limit = n
	}

	incidents, err := h.repo.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list incidents", zap.Error(err))
		errors.RespondWithError(w, domain.ErrDatabaseQuery)
		return
	}
	if incidents == nil {
		incidents = []domain.Incident{}
	}

	respondJSON(w, h.logger, http.StatusOK, dto.IncidentsResponse{Incidents: incidents})
}
