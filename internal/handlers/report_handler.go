package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veritas-edu/analysis-service/internal/models"
	"github.com/veritas-edu/analysis-service/internal/services"
	"github.com/veritas-edu/analysis-service/internal/utils"
)

type ReportHandler struct {
	BaseHandler
	reportService   services.ReportService
	analysisService services.AnalysisService
	flaggingService services.FlaggingService
}

func NewReportHandler(
	reportService services.ReportService,
	analysisService services.AnalysisService,
	flaggingService services.FlaggingService,
	logger utils.Logger,
) *ReportHandler {
	return &ReportHandler{
		BaseHandler:     NewBaseHandler(logger),
		reportService:   reportService,
		analysisService: analysisService,
		flaggingService: flaggingService,
	}
}

// ExportExamReport streams the XLSX analysis report for a stored exam
// @Summary Export exam report
// @Description Runs analysis and flagging for the exam and streams the workbook as an attachment
// @Tags reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param exam_id path string true "Exam ID"
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /reports/exams/{exam_id} [get]
func (h *ReportHandler) ExportExamReport(c *gin.Context) {
	examID := c.Param("exam_id")

	h.LogRequest(c, "Exporting exam report", "exam_id", examID)

	result, err := h.analysisService.AnalyzeExamByID(c.Request.Context(), examID, models.DefaultAnalysisConfig())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	flaggingRun, err := h.flaggingService.ProcessSubmissionsByExam(c.Request.Context(), examID, models.DefaultFlaggingConfig(), models.ModelConfig{})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	workbook, err := h.reportService.ExportAnalysisReport(c.Request.Context(), result, flaggingRun.Flagged)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("exam-analysis-%s.xlsx", examID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := workbook.Write(c.Writer); err != nil {
		h.LogError(c, "Failed to stream report", err, "exam_id", examID)
		c.Status(http.StatusInternalServerError)
	}
}
