package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gradewise/gradewise-backend/internal/middleware"
	"github.com/gradewise/gradewise-backend/internal/model"
	"github.com/gradewise/gradewise-backend/internal/response"
	"github.com/gradewise/gradewise-backend/internal/service"
	"github.com/gradewise/gradewise-backend/internal/validator"
	"github.com/rs/zerolog"
)

// AttemptHandler exposes the attempt lifecycle to students.
type AttemptHandler struct {
	attempts *service.AttemptService
	papers   *service.PaperService
	log      zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attempts *service.AttemptService, papers *service.PaperService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attempts: attempts,
		papers:   papers,
		log:      log.With().Str("component", "attempt_handler").Logger(),
	}
}

// GetPaper godoc
// GET /api/v1/assessments/:assessment_id/paper
// Returns the question paper with answer keys stripped.
func (h *AttemptHandler) GetPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	paper, err := h.papers.GetPaper(c.Request.Context(), assessmentID, claims.UserID)
	if err != nil {
		h.failFromDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, paper)
}

// Begin godoc
// POST /api/v1/assessments/:assessment_id/attempts
// Starts a new attempt or resumes the caller's in-flight one.
func (h *AttemptHandler) Begin(c *gin.Context) {
	claims := middleware.GetClaims(c)

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.attempts.BeginAttempt(c.Request.Context(), assessmentID, claims.UserID)
	if err != nil {
		h.failFromDomain(c, err)
		return
	}

	status := http.StatusCreated
	if result.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, result)
}

// GetState godoc
// GET /api/v1/attempts/:attempt_id/state
// Restores saved answers, position and remaining time after a page reload.
func (h *AttemptHandler) GetState(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.attempts.GetState(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		h.failFromDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// SaveProgress godoc
// PUT /api/v1/attempts/:attempt_id/progress
// Autosaves partial answers. Safe to call at arbitrary frequency.
func (h *AttemptHandler) SaveProgress(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SaveProgressRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attempts.SaveProgress(c.Request.Context(), attemptID, claims.UserID, req.Answers, req.CurrentQuestion); err != nil {
		h.failFromDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"saved": true})
}

// Submit godoc
// POST /api/v1/attempts/:attempt_id/submit
// Finalizes and scores the attempt. Idempotent on retry.
func (h *AttemptHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.attempts.Submit(c.Request.Context(), attemptID, claims.UserID, req.Answers)
	if err != nil {
		h.failFromDomain(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// ListMine godoc
// GET /api/v1/attempts
// Lists the caller's attempt history, newest first.
func (h *AttemptHandler) ListMine(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attempts, err := h.attempts.ListByStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		h.failFromDomain(c, err)
		return
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	response.Success(c, http.StatusOK, attempts)
}

// failFromDomain maps domain errors onto the response envelope.
func (h *AttemptHandler) failFromDomain(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotEnrolled):
		response.Fail(c, http.StatusForbidden, response.ErrNotEnrolled)
	case errors.Is(err, service.ErrNotPublished):
		response.Fail(c, http.StatusForbidden, response.ErrNotPublished)
	case errors.Is(err, service.ErrNotYetOpen):
		response.Fail(c, http.StatusForbidden, response.ErrNotOpenYet)
	case errors.Is(err, service.ErrWindowClosed):
		response.Fail(c, http.StatusForbidden, response.ErrWindowClosed)
	case errors.Is(err, service.ErrAssessmentNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
	case errors.Is(err, service.ErrAttemptNotActive):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotActive)
	case errors.Is(err, service.ErrAttemptExpired):
		response.Fail(c, http.StatusConflict, response.ErrAttemptExpired)
	default:
		h.log.Error().Err(err).Msg("Unhandled attempt error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
