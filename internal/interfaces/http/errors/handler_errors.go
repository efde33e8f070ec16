package errors

import (
	"encoding/json"
	"net/http"

	"github.com/manorfm/recoveryM/internal/domain"
)

func getStatus(err domain.Error) int {
	switch e := err.(type) {
	case *domain.ValidationError:
		return http.StatusBadRequest
	case *domain.RecoveryError:
		switch e.Kind {
		case domain.KindNotFound:
			return http.StatusNotFound
		case domain.KindConflict:
			return http.StatusConflict
		case domain.KindUnauthorized:
			return http.StatusUnauthorized
		case domain.KindForbidden:
			return http.StatusForbidden
		case domain.KindRateLimited:
			return http.StatusTooManyRequests
		}
	}

	return http.StatusInternalServerError
}

// RespondWithError sends a standardized error response
func RespondWithError(w http.ResponseWriter, err domain.Error) {
	RespondErrorWithDetails(w, err, nil)
}

// RespondErrorWithDetails sends a standardized error response with details
func RespondErrorWithDetails(w http.ResponseWriter, err domain.Error, details []ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(getStatus(err))
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    err.GetCode(),
		Message: err.GetMessage(),
		Details: details,
	})
}

// Respond renders any error. Errors outside the domain set are rendered as
// domain.ErrInternal.
func Respond(w http.ResponseWriter, err error) {
	RespondWithError(w, domain.AsError(err))
}
