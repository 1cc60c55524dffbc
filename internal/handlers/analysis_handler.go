package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veritas-edu/analysis-service/internal/models"
	"github.com/veritas-edu/analysis-service/internal/repositories"
	"github.com/veritas-edu/analysis-service/internal/services"
	"github.com/veritas-edu/analysis-service/internal/utils"
	"github.com/veritas-edu/analysis-service/internal/validator"
)

type AnalysisHandler struct {
	BaseHandler
	analysisService services.AnalysisService
	validator       *validator.Validator
}

func NewAnalysisHandler(
	analysisService services.AnalysisService,
	validator *validator.Validator,
	logger utils.Logger,
) *AnalysisHandler {
	return &AnalysisHandler{
		BaseHandler:     NewBaseHandler(logger),
		analysisService: analysisService,
		validator:       validator,
	}
}

// RunAnalysis runs item analysis over an inline roster
// @Summary Run item analysis
// @Description Runs the full item-analysis pipeline over inline variants and responses
// @Tags analysis
// @Accept json
// @Produce json
// @Param request body services.AnalyzeExamRequest true "Analysis input"
// @Success 200 {object} models.BiPointAnalysisResult
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analysis/run [post]
func (h *AnalysisHandler) RunAnalysis(c *gin.Context) {
	var req services.AnalyzeExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Running inline exam analysis", "exam_id", req.ExamID)

	result, err := h.analysisService.AnalyzeExam(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetExamAnalysis runs or returns the cached analysis for a stored exam
// @Summary Analyze stored exam
// @Description Loads the exam snapshot and runs item analysis, with config overrides via query parameters
// @Tags analysis
// @Produce json
// @Param exam_id path string true "Exam ID"
// @Param min_sample_size query int false "Minimum sample size"
// @Param confidence_level query number false "Chi-square confidence level"
// @Param exclude_incomplete query bool false "Exclude incomplete submissions"
// @Success 200 {object} models.BiPointAnalysisResult
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analysis/exams/{exam_id} [get]
func (h *AnalysisHandler) GetExamAnalysis(c *gin.Context) {
	examID := c.Param("exam_id")

	config := models.DefaultAnalysisConfig()
	if v := c.Query("min_sample_size"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			config.MinSampleSize = parsed
		}
	}
	if v := c.Query("confidence_level"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			config.ConfidenceLevel = parsed
		}
	}
	if v := c.Query("exclude_incomplete"); v != "" {
		config.ExcludeIncompleteData = v == "true" || v == "1"
	}

	h.LogRequest(c, "Running snapshot-backed exam analysis", "exam_id", examID)

	result, err := h.analysisService.AnalyzeExamByID(c.Request.Context(), examID, config)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListExamSnapshots lists exams available for analysis
// @Summary List exam snapshots
// @Description Lists the stored exam snapshots this service can analyze
// @Tags analysis
// @Produce json
// @Param limit query int false "Maximum results"
// @Param offset query int false "Results offset"
// @Param updated_after query string false "RFC3339 lower bound on snapshot update time"
// @Success 200 {array} repositories.SnapshotInfo
// @Failure 500 {object} ErrorResponse
// @Router /analysis/exams [get]
func (h *AnalysisHandler) ListExamSnapshots(c *gin.Context) {
	filters := repositories.SnapshotFilters{}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filters.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filters.Offset = parsed
		}
	}
	if v := c.Query("updated_after"); v != "" {
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			filters.UpdatedAfter = &parsed
		}
	}

	infos, err := h.analysisService.ListExamSnapshots(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, infos)
}

// InvalidateExamCache drops cached results for an exam
// @Summary Invalidate exam cache
// @Description Drops cached analysis and flagging results after a snapshot update
// @Tags analysis
// @Produce json
// @Param exam_id path string true "Exam ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analysis/exams/{exam_id}/cache [delete]
func (h *AnalysisHandler) InvalidateExamCache(c *gin.Context) {
	examID := c.Param("exam_id")

	h.LogRequest(c, "Invalidating exam result cache", "exam_id", examID)

	if err := h.analysisService.InvalidateExamCache(c.Request.Context(), examID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Data: gin.H{"exam_id": examID, "invalidated": true}})
}
