package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/veritas-edu/analysis-service/internal/config"
	"github.com/veritas-edu/analysis-service/internal/models"
	"github.com/veritas-edu/analysis-service/internal/services"
	"github.com/veritas-edu/analysis-service/internal/utils"
	"github.com/veritas-edu/analysis-service/internal/validator"
)

type HandlerManager struct {
	analysisHandler *AnalysisHandler
	flaggingHandler *FlaggingHandler
	reportHandler   *ReportHandler
	authMiddleware  *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig)

	return &HandlerManager{
		analysisHandler: NewAnalysisHandler(serviceManager.Analysis(), validator, logger),
		flaggingHandler: NewFlaggingHandler(serviceManager.Flagging(), validator, logger),
		reportHandler:   NewReportHandler(serviceManager.Report(), serviceManager.Analysis(), serviceManager.Flagging(), logger),
		authMiddleware:  authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Analysis routes - Teachers, Proctors and Admins only
		analysis := v1.Group("/analysis")
		analysis.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleProctor, models.RoleAdmin))
		{
			analysis.POST("/run", hm.analysisHandler.RunAnalysis)
			analysis.GET("/exams", hm.analysisHandler.ListExamSnapshots)
			analysis.GET("/exams/:exam_id", hm.analysisHandler.GetExamAnalysis)
			analysis.DELETE("/exams/:exam_id/cache", hm.analysisHandler.InvalidateExamCache)
		}

		// Integrity routes - Teachers, Proctors and Admins only
		integrity := v1.Group("/integrity")
		integrity.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleProctor, models.RoleAdmin))
		{
			integrity.POST("/flag", hm.flaggingHandler.FlagSubmissions)
			integrity.GET("/exams/:exam_id", hm.flaggingHandler.FlagExam)
			integrity.POST("/summary", hm.flaggingHandler.SummarizeFlagged)
		}

		// Report routes - Teachers, Proctors and Admins only
		reports := v1.Group("/reports")
		reports.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleProctor, models.RoleAdmin))
		{
			reports.GET("/exams/:exam_id", hm.reportHandler.ExportExamReport)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "analysis-service",
		})
	})
}
