package services

import (
	"context"

	"github.com/xuri/excelize/v2"

	"github.com/veritas-edu/analysis-service/internal/models"
	"github.com/veritas-edu/analysis-service/internal/repositories"
)

// ===== REQUEST/RESPONSE DTOs =====

// AnalyzeExamRequest carries a complete inline analysis input set.
type AnalyzeExamRequest struct {
	ExamID    string                   `json:"exam_id" validate:"required"`
	ExamTitle string                   `json:"exam_title"`
	Variants  []models.ExamVariant     `json:"variants" validate:"required,min=1,dive"`
	Responses []models.StudentResponse `json:"responses" validate:"required,dive"`
	Config    models.AnalysisConfig    `json:"config"`
}

// FlagSubmissionsRequest carries a complete inline flagging input set. The
// variant definitions are needed for cross-variant regrading; the roster
// travels inside the analysis result's metadata.
type FlagSubmissionsRequest struct {
	VariantSimilarity  models.SimilarityMatrix                  `json:"variant_similarity" validate:"required"`
	ResponseSimilarity models.SimilarityMatrix                  `json:"response_similarity" validate:"required"`
	Variants           []models.ExamVariant                     `json:"variants"`
	ExamResult         *models.BiPointAnalysisResult            `json:"exam_result" validate:"required"`
	VariantResults     map[string]*models.VariantAnalysisResult `json:"variant_results"`
	Config             models.FlaggingConfig                    `json:"config"`
	ModelConfig        models.ModelConfig                       `json:"model_config"`
}

// FlaggingRunResult bundles one flagging run with its summary.
type FlaggingRunResult struct {
	ExamID  string                     `json:"exam_id,omitempty"`
	Flagged []models.FlaggedSubmission `json:"flagged"`
	Summary models.FlaggingSummary     `json:"summary"`
}

// ===== SERVICE INTERFACES =====

// AnalysisService runs classical item analysis over exam submissions.
type AnalysisService interface {
	// AnalyzeExam runs the full item-analysis pipeline over inline inputs.
	AnalyzeExam(ctx context.Context, req *AnalyzeExamRequest) (*models.BiPointAnalysisResult, error)

	// AnalyzeExamByID loads the stored snapshot for the exam and runs the
	// same pipeline, caching the result.
	AnalyzeExamByID(ctx context.Context, examID string, config models.AnalysisConfig) (*models.BiPointAnalysisResult, error)

	// ListExamSnapshots lists the snapshots available for analysis.
	ListExamSnapshots(ctx context.Context, filters repositories.SnapshotFilters) ([]*repositories.SnapshotInfo, error)

	// InvalidateExamCache drops cached analysis and flagging results for an
	// exam, typically after an upstream snapshot update.
	InvalidateExamCache(ctx context.Context, examID string) error
}

// FlaggingService scores unique student pairs for probable answer sharing.
type FlaggingService interface {
	// ProcessSubmissions scores every unique student pair found in the
	// response-similarity matrix.
	ProcessSubmissions(ctx context.Context, req *FlagSubmissionsRequest) ([]models.FlaggedSubmission, error)

	// ProcessSubmissionsByExam loads the stored snapshot, runs item analysis
	// and then the flagging pipeline, caching the result.
	ProcessSubmissionsByExam(ctx context.Context, examID string, config models.FlaggingConfig, modelConfig models.ModelConfig) (*FlaggingRunResult, error)

	// GetFlaggingSummary reduces a (possibly filtered) flagged list to
	// reporting aggregates.
	GetFlaggingSummary(flagged []models.FlaggedSubmission) models.FlaggingSummary
}

// ReportService exports analysis runs as spreadsheets for instructor review.
type ReportService interface {
	ExportAnalysisReport(ctx context.Context, result *models.BiPointAnalysisResult, flagged []models.FlaggedSubmission) (*excelize.File, error)
}

// ServiceManager aggregates all services with lifecycle management.
type ServiceManager interface {
	Analysis() AnalysisService
	Flagging() FlaggingService
	Report() ReportService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
