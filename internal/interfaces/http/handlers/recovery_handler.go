package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/manorfm/recoveryM/internal/domain"
	"github.com/manorfm/recoveryM/internal/interfaces/http/dto"
	"github.com/manorfm/recoveryM/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// RecoveryHandler exposes the recovery operations over HTTP
type RecoveryHandler struct {
	service  domain.RecoveryService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewRecoveryHandler(service domain.RecoveryService, logger *zap.Logger) *RecoveryHandler {
	return &RecoveryHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

// StartHandler godoc
// @Summary Start a password recovery
// @Tags recovery
// @Accept json
// @Produce json
// @Param request body dto.StartRecoveryRequest true "Identity claim"
// @Success 202 {object} dto.StartRecoveryResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /v1/recovery/start [post]
func (h *RecoveryHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.StartRecoveryRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	token, err := h.service.Start(r.Context(), domain.StartRequest{
		Identity:     req.Identity,
		FactorType:   req.FactorType,
		CaptchaProof: req.CaptchaProof,
	})
	if err != nil {
		errors.Respond(w, err)
		return
	}

	respondJSON(w, h.logger, http.StatusAccepted, dto.StartRecoveryResponse{Token: token})
}

// StatusHandler godoc
// @Summary Get the status of a confirmed recovery process
// @Tags recovery
// @Accept json
// @Produce json
// @Param request body dto.TokenRequest true "Process token"
// @Success 200 {object} domain.ProcessStatus
// @Failure 404 {object} errors.ErrorResponse
// @Router /v1/recovery/status [post]
func (h *RecoveryHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.TokenRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	status, err := h.service.GetProcessStatus(r.Context(), req.Token)
	if err != nil {
		errors.Respond(w, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, status)
}

// SendPinHandler godoc
// @Summary Send a pin to one of the account factors
// @Description Always answers 202 for well-formed requests.
// @Tags recovery
// @Accept json
// @Param request body dto.SendPinRequest true "Factor"
// @Success 202
// @Failure 400 {object} errors.ErrorResponse
// @Router /v1/recovery/pin/send [post]
func (h *RecoveryHandler) SendPinHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.SendPinRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	if err := h.service.SendPin(r.Context(), req.Token, req.FactorType); err != nil {
		errors.Respond(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// VerifyPinHandler godoc
// @Summary Verify the pin in flight
// @Tags recovery
// @Accept json
// @Produce json
// @Param request body dto.VerifyPinRequest true "Pin"
// @Success 200 {object} dto.VerifyPinResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /v1/recovery/pin/verify [post]
func (h *RecoveryHandler) VerifyPinHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyPinRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	ok, err := h.service.VerifyPin(r.Context(), req.Token, req.Pin)
	if err != nil {
		errors.Respond(w, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, dto.VerifyPinResponse{Verified: ok})
}

// AbortHandler godoc
// @Summary Abort a recovery process
// @Tags recovery
// @Accept json
// @Param request body dto.TokenRequest true "Process token"
// @Success 204
// @Failure 400 {object} errors.ErrorResponse
// @Router /v1/recovery/abort [post]
func (h *RecoveryHandler) AbortHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.TokenRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	if err := h.service.AbortProcess(r.Context(), req.Token); err != nil {
		errors.Respond(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AbortLinkHandler godoc
// @Summary Abort a recovery process from the link in a pin notification
// @Tags recovery
// @Produce plain
// @Param token query string true "Process token"
// @Success 200 {string} string
// @Router /v1/recovery/abort [get]
func (h *RecoveryHandler) AbortLinkHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if err := h.service.AbortProcess(r.Context(), token); err != nil {
		errors.Respond(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("The password recovery request has been cancelled.\n"))
}

// QuestionsHandler godoc
// @Summary List the secret questions of a confirmed process
// @Tags recovery
// @Accept json
// @Produce json
// @Param request body dto.TokenRequest true "Process token"
// @Success 200 {object} dto.QuestionsResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /v1/recovery/questions [post]
func (h *RecoveryHandler) QuestionsHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.TokenRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	questions, err := h.service.ListQuestions(r.Context(), req.Token)
	if err != nil {
		errors.Respond(w, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, dto.QuestionsResponse{Questions: questions})
}

// AnswerQuestionHandler godoc
// @Summary Answer one secret question
// @Tags recovery
// @Accept json
// @Produce json
// @Param request body dto.AnswerQuestionRequest true "Answer"
// @Success 200 {object} dto.AnswerResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /v1/recovery/questions/answer [post]
func (h *RecoveryHandler) AnswerQuestionHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.AnswerQuestionRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	ok, err := h.service.AnswerQuestion(r.Context(), req.Token, req.QuestionID, req.Answer)
	if err != nil {
		errors.Respond(w, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, dto.AnswerResponse{Accepted: ok})
}

// AnswerAllQuestionsHandler godoc
// @Summary Answer every secret question at once
// @Tags recovery
// @Accept json
// @Produce json
// @Param request body dto.AnswerAllQuestionsRequest true "Answers"
// @Success 200 {object} dto.AnswerResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /v1/recovery/questions/answer-all [post]
func (h *RecoveryHandler) AnswerAllQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.AnswerAllQuestionsRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	ok, err := h.service.AnswerAllQuestions(r.Context(), req.Token, req.Answers)
	if err != nil {
		errors.Respond(w, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, dto.AnswerResponse{Accepted: ok})
}

// SetPasswordHandler godoc
// @Summary Set the new password
// @Tags recovery
// @Accept json
// @Produce json
// @Param request body dto.SetPasswordRequest true "New password"
// @Success 200 {object} dto.SetPasswordResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /v1/recovery/password [post]
func (h *RecoveryHandler) SetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.SetPasswordRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	ok, err := h.service.SetNewPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		errors.Respond(w, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, dto.SetPasswordResponse{Updated: ok})
}
