package handlers

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/manorfm/recoveryM/internal/domain"
	"github.com/manorfm/recoveryM/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

func newValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// decode reads a JSON body into req and runs the struct validation. On
// failure the error response has already been written.
func decode(w http.ResponseWriter, r *http.Request, validate *validator.Validate, req interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		errors.RespondWithError(w, domain.ErrInvalidRequestBody)
		return false
	}

	if err := validate.Struct(req); err != nil {
		errors.RespondErrorWithDetails(w, domain.ErrInvalidRequestBody, errors.ValidationDetails(err))
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}
