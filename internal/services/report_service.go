package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/veritas-edu/analysis-service/internal/models"
)

type reportService struct {
	logger *slog.Logger
}

func NewReportService(logger *slog.Logger) ReportService {
	return &reportService{logger: logger}
}

const (
	sheetSummary      = "Summary"
	sheetItems        = "Item Statistics"
	sheetDistractors  = "Distractors"
	sheetFlaggedPairs = "Flagged Pairs"
)

// ExportAnalysisReport builds the instructor-facing workbook for one
// analysis run. The flagged list is optional; without it the Flagged Pairs
// sheet only carries headers.
func (s *reportService) ExportAnalysisReport(ctx context.Context, result *models.BiPointAnalysisResult, flagged []models.FlaggedSubmission) (*excelize.File, error) {
	if result == nil {
		return nil, NewValidationError("result", "analysis result is required", nil)
	}

	f := excelize.NewFile()

	if err := s.writeSummarySheet(f, result); err != nil {
		return nil, err
	}
	if err := s.writeItemSheet(f, result); err != nil {
		return nil, err
	}
	if err := s.writeDistractorSheet(f, result); err != nil {
		return nil, err
	}
	if err := s.writeFlaggedSheet(f, flagged); err != nil {
		return nil, err
	}

	// Drop the default sheet created by excelize.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	s.logger.Info("Analysis report exported",
		"exam_id", result.ExamID,
		"questions", len(result.Questions),
		"flagged_pairs", len(flagged))

	return f, nil
}

func (s *reportService) writeSummarySheet(f *excelize.File, result *models.BiPointAnalysisResult) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Exam ID", result.ExamID},
		{"Exam Title", result.ExamTitle},
		{"Analysis ID", result.AnalysisID},
		{"Analyzed At", result.Metadata.AnalyzedAt.Format("2006-01-02 15:04:05")},
		{"Sample Size", result.Metadata.SampleSize},
		{"Excluded Students", result.Metadata.ExcludedStudents},
		{"Total Variants", result.Metadata.TotalVariants},
		{"Questions Analyzed", len(result.Questions)},
		{},
		{"Mean Difficulty", result.Summary.MeanDifficulty},
		{"Mean Discrimination", result.Summary.MeanDiscrimination},
		{"Mean Point-Biserial", result.Summary.MeanPointBiserial},
		{"Score Mean (%)", result.Summary.ScoreDistribution.Mean},
		{"Score Std Dev (%)", result.Summary.ScoreDistribution.StdDev},
		{"Reliability (Cronbach's Alpha)", result.Summary.Reliability},
	}

	return writeRows(f, sheetSummary, rows)
}

func (s *reportService) writeItemSheet(f *excelize.File, result *models.BiPointAnalysisResult) error {
	if _, err := f.NewSheet(sheetItems); err != nil {
		return fmt.Errorf("failed to create item sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Question ID", "Type", "Responses", "Correct", "Difficulty", "Discrimination", "Point-Biserial", "Chi-Square", "P-Value", "Significant", "Warnings"},
	}
	for i := range result.Questions {
		q := &result.Questions[i]
		warnings := ""
		for j, w := range q.Significance.Warnings {
			if j > 0 {
				warnings += "; "
			}
			warnings += w
		}
		rows = append(rows, []interface{}{
			q.QuestionID, string(q.Type), q.TotalResponses, q.CorrectResponses,
			q.DifficultyIndex, q.DiscriminationIndex, q.PointBiserial,
			q.Significance.TestStatistic, q.Significance.PValue,
			q.Significance.IsSignificant, warnings,
		})
	}

	return writeRows(f, sheetItems, rows)
}

func (s *reportService) writeDistractorSheet(f *excelize.File, result *models.BiPointAnalysisResult) error {
	if _, err := f.NewSheet(sheetDistractors); err != nil {
		return fmt.Errorf("failed to create distractor sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Question ID", "Option", "Correct Option", "Frequency", "Percentage", "Discrimination", "Point-Biserial", "Omitted"},
	}
	for i := range result.Questions {
		q := &result.Questions[i]
		if q.Distractors == nil {
			continue
		}
		for j := range q.Distractors.Options {
			opt := &q.Distractors.Options[j]
			rows = append(rows, []interface{}{
				q.QuestionID, opt.Option, opt.IsCorrectOption,
				opt.Frequency, opt.Percentage,
				opt.DiscriminationIndex, opt.PointBiserial,
				q.Distractors.OmittedCount,
			})
		}
	}

	return writeRows(f, sheetDistractors, rows)
}

func (s *reportService) writeFlaggedSheet(f *excelize.File, flagged []models.FlaggedSubmission) error {
	if _, err := f.NewSheet(sheetFlaggedPairs); err != nil {
		return fmt.Errorf("failed to create flagged pairs sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Student A", "Student B", "Variant A", "Variant B", "Score A (%)", "Score B (%)", "Variant Similarity", "Response Similarity", "Cross Grade A", "Cross Grade B", "Probability", "Band", "Resolved"},
	}
	for i := range flagged {
		p := &flagged[i]
		rows = append(rows, []interface{}{
			p.StudentA, p.StudentB, p.VariantA, p.VariantB,
			p.ScoreA, p.ScoreB,
			p.VariantSimilarity, p.ResponseSimilarity,
			p.CrossGradeA, p.CrossGradeB,
			p.Probability, string(p.Band), p.Resolved,
		})
	}

	return writeRows(f, sheetFlaggedPairs, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d on %s: %w", i+1, sheet, err)
		}
	}
	return nil
}
