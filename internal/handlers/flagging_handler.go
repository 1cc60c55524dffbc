package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veritas-edu/analysis-service/internal/models"
	"github.com/veritas-edu/analysis-service/internal/services"
	"github.com/veritas-edu/analysis-service/internal/utils"
	"github.com/veritas-edu/analysis-service/internal/validator"
)

type FlaggingHandler struct {
	BaseHandler
	flaggingService services.FlaggingService
	validator       *validator.Validator
}

func NewFlaggingHandler(
	flaggingService services.FlaggingService,
	validator *validator.Validator,
	logger utils.Logger,
) *FlaggingHandler {
	return &FlaggingHandler{
		BaseHandler:     NewBaseHandler(logger),
		flaggingService: flaggingService,
		validator:       validator,
	}
}

// FlagSubmissions scores student pairs from inline inputs
// @Summary Flag student pairs
// @Description Scores every unique student pair from inline similarity matrices and analysis results
// @Tags integrity
// @Accept json
// @Produce json
// @Param request body services.FlagSubmissionsRequest true "Flagging input"
// @Success 200 {object} services.FlaggingRunResult
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /integrity/flag [post]
func (h *FlaggingHandler) FlagSubmissions(c *gin.Context) {
	var req services.FlagSubmissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Running inline flagging run")

	flagged, err := h.flaggingService.ProcessSubmissions(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, services.FlaggingRunResult{
		Flagged: flagged,
		Summary: h.flaggingService.GetFlaggingSummary(flagged),
	})
}

// FlagExam runs the snapshot-backed flagging pipeline for a stored exam
// @Summary Flag stored exam
// @Description Loads the exam snapshot, runs analysis and flagging, returning ranked pairs
// @Tags integrity
// @Produce json
// @Param exam_id path string true "Exam ID"
// @Param invert_variant_similarity query bool false "Invert variant similarity"
// @Success 200 {object} services.FlaggingRunResult
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /integrity/exams/{exam_id} [get]
func (h *FlaggingHandler) FlagExam(c *gin.Context) {
	examID := c.Param("exam_id")

	modelConfig := models.ModelConfig{}
	if v := c.Query("invert_variant_similarity"); v != "" {
		modelConfig.InvertVariantSimilarity = v == "true" || v == "1"
	}

	h.LogRequest(c, "Running snapshot-backed flagging run", "exam_id", examID)

	result, err := h.flaggingService.ProcessSubmissionsByExam(c.Request.Context(), examID, models.DefaultFlaggingConfig(), modelConfig)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SummarizeFlagged reduces a flagged list to reporting aggregates
// @Summary Summarize flagged pairs
// @Description Reduces a (possibly filtered) flagged-pair list to summary statistics
// @Tags integrity
// @Accept json
// @Produce json
// @Param request body []models.FlaggedSubmission true "Flagged pairs"
// @Success 200 {object} models.FlaggingSummary
// @Failure 400 {object} ErrorResponse
// @Router /integrity/summary [post]
func (h *FlaggingHandler) SummarizeFlagged(c *gin.Context) {
	var flagged []models.FlaggedSubmission
	if err := c.ShouldBindJSON(&flagged); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, h.flaggingService.GetFlaggingSummary(flagged))
}
