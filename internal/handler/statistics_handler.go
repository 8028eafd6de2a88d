package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gradewise/gradewise-backend/internal/repository"
	"github.com/gradewise/gradewise-backend/internal/response"
	"github.com/gradewise/gradewise-backend/internal/service"
	"github.com/rs/zerolog"
)

// StatisticsHandler exposes instructor-facing aggregates.
type StatisticsHandler struct {
	stats *service.StatisticsService
	log   zerolog.Logger
}

// NewStatisticsHandler creates a new StatisticsHandler.
func NewStatisticsHandler(stats *service.StatisticsService, log zerolog.Logger) *StatisticsHandler {
	return &StatisticsHandler{
		stats: stats,
		log:   log.With().Str("component", "statistics_handler").Logger(),
	}
}

// GetStatistics godoc
// GET /api/v1/assessments/:assessment_id/statistics
// Aggregates over submitted attempts only.
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	stats, err := h.stats.GetAssessmentStatistics(c.Request.Context(), assessmentID)
	if err != nil {
		if errors.Is(err, service.ErrAssessmentNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Failed to compute statistics")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// ListAttempts godoc
// GET /api/v1/assessments/:assessment_id/attempts?page=1&per_page=20
// Paginated attempt roster with student names.
func (h *StatisticsHandler) ListAttempts(c *gin.Context) {
	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	results, total, err := h.stats.ListAssessmentAttempts(c.Request.Context(), assessmentID, page, perPage)
	if err != nil {
		if errors.Is(err, service.ErrAssessmentNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Failed to list attempts")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if results == nil {
		results = []repository.AttemptResult{}
	}

	totalPages := int(total) / perPage
	if int(total)%perPage != 0 {
		totalPages++
	}
	response.SuccessWithPagination(c, http.StatusOK, results, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: totalPages,
	})
}
