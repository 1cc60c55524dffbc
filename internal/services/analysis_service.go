package services

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/veritas-edu/analysis-service/internal/cache"
	"github.com/veritas-edu/analysis-service/internal/events"
	"github.com/veritas-edu/analysis-service/internal/models"
	"github.com/veritas-edu/analysis-service/internal/repositories"
	"github.com/veritas-edu/analysis-service/internal/validator"
)

type analysisService struct {
	repo           repositories.Repository
	cacheManager   *cache.CacheManager
	eventPublisher events.EventPublisher
	logger         *slog.Logger
	validator      *validator.Validator
}

func NewAnalysisService(repo repositories.Repository, cacheManager *cache.CacheManager, eventPublisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) AnalysisService {
	return &analysisService{
		repo:           repo,
		cacheManager:   cacheManager,
		eventPublisher: eventPublisher,
		logger:         logger,
		validator:      validator,
	}
}

// ===== INLINE ANALYSIS =====

// AnalyzeExam runs the full item-analysis pipeline over the supplied roster
// and variant definitions.
func (s *analysisService) AnalyzeExam(ctx context.Context, req *AnalyzeExamRequest) (*models.BiPointAnalysisResult, error) {
	if req == nil {
		return nil, NewValidationError("request", "request is required", nil)
	}
	if errs := s.validator.Struct(req); errs != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidationFailed, errs.Error())
	}

	config := normalizeAnalysisConfig(req.Config)

	s.logger.Info("Starting exam analysis",
		"exam_id", req.ExamID,
		"variants", len(req.Variants),
		"responses", len(req.Responses),
		"min_sample_size", config.MinSampleSize)

	universe := questionUniverse(req.Variants)
	if len(universe) == 0 {
		return nil, fmt.Errorf("exam %s has no questions across its variants", req.ExamID)
	}

	variants := variantIndex(req.Variants)
	eligible, excluded := s.filterEligible(req.Responses, variants, config)
	if len(eligible) < config.MinSampleSize {
		return nil, &InsufficientSampleError{Required: config.MinSampleSize, Actual: len(eligible)}
	}

	questions, summary := s.analyzeStudents(universe, eligible, variants, config)

	result := &models.BiPointAnalysisResult{
		AnalysisID: uuid.New().String(),
		ExamID:     req.ExamID,
		ExamTitle:  req.ExamTitle,
		Config:     config,
		Questions:  questions,
		Summary:    summary,
		Metadata: models.AnalysisMetadata{
			SampleSize:       len(eligible),
			ExcludedStudents: excluded,
			TotalVariants:    len(req.Variants),
			AnalyzedAt:       time.Now().UTC(),
			Responses:        eligible,
		},
	}

	if config.IncludeVariantBreakdown {
		result.Variants = s.analyzeVariants(req.Variants, eligible, config)
	}

	s.logger.Info("Exam analysis completed",
		"exam_id", req.ExamID,
		"analysis_id", result.AnalysisID,
		"sample_size", len(eligible),
		"excluded", excluded,
		"questions", len(questions),
		"reliability", summary.Reliability)

	return result, nil
}

// ===== SNAPSHOT-BACKED ANALYSIS =====

// AnalyzeExamByID loads the stored snapshot for the exam, runs the pipeline
// and caches the result keyed by exam ID and configuration. Events are only
// published for fresh runs, never for cache hits.
func (s *analysisService) AnalyzeExamByID(ctx context.Context, examID string, config models.AnalysisConfig) (*models.BiPointAnalysisResult, error) {
	config = normalizeAnalysisConfig(config)
	cacheKey := fmt.Sprintf("exam:%s:%s", examID, configHash(config))

	var result models.BiPointAnalysisResult
	computed := false
	err := s.cacheManager.Analysis.CacheOrExecute(ctx, cacheKey, &result, cache.AnalysisCacheConfig.TTL, func() (interface{}, error) {
		snapshot, err := s.repo.Snapshot().GetByExamID(ctx, examID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, fmt.Errorf("%w: exam snapshot %s", ErrNotFound, examID)
			}
			return nil, fmt.Errorf("failed to load exam snapshot: %w", err)
		}

		fresh, err := s.AnalyzeExam(ctx, &AnalyzeExamRequest{
			ExamID:    snapshot.ExamID,
			ExamTitle: snapshot.Title,
			Variants:  snapshot.Variants,
			Responses: snapshot.Responses,
			Config:    config,
		})
		if err != nil {
			return nil, err
		}
		computed = true
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	if !computed {
		s.logger.Debug("Analysis cache hit", "exam_id", examID)
		return &result, nil
	}

	event := events.NewEvent(events.EventAnalysisCompleted, events.AnalysisCompletedEvent{
		AnalysisID:     result.AnalysisID,
		ExamID:         result.ExamID,
		SampleSize:     result.Metadata.SampleSize,
		QuestionCount:  len(result.Questions),
		MeanDifficulty: result.Summary.MeanDifficulty,
		Reliability:    result.Summary.Reliability,
	})
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish analysis event", "exam_id", examID, "error", err)
	}

	return &result, nil
}

// ListExamSnapshots lists the snapshots available for analysis.
func (s *analysisService) ListExamSnapshots(ctx context.Context, filters repositories.SnapshotFilters) ([]*repositories.SnapshotInfo, error) {
	infos, err := s.repo.Snapshot().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list exam snapshots: %w", err)
	}
	return infos, nil
}

// InvalidateExamCache drops cached analysis and flagging results for an exam.
// Called after an upstream snapshot update lands.
func (s *analysisService) InvalidateExamCache(ctx context.Context, examID string) error {
	exists, err := s.repo.Snapshot().Exists(ctx, examID)
	if err != nil {
		return fmt.Errorf("failed to check exam snapshot: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: exam snapshot %s", ErrNotFound, examID)
	}

	s.cacheManager.InvalidateExam(ctx, examID)
	s.logger.Info("Exam result cache invalidated", "exam_id", examID)

	return nil
}

// ===== PIPELINE =====

// filterEligible applies the incomplete-data exclusion rule. A submission is
// incomplete when its variant is unknown or it answered fewer questions than
// its variant defines.
func (s *analysisService) filterEligible(responses []models.StudentResponse, variants map[string]*models.ExamVariant, config models.AnalysisConfig) ([]models.StudentResponse, int) {
	if !config.ExcludeIncompleteData {
		return responses, 0
	}

	var eligible []models.StudentResponse
	excluded := 0
	for i := range responses {
		variant, ok := variants[responses[i].VariantCode]
		if !ok || len(responses[i].Responses) < len(variant.Questions) {
			excluded++
			s.logger.Warn("Excluding incomplete submission",
				"student_id", responses[i].StudentID,
				"variant", responses[i].VariantCode)
			continue
		}
		eligible = append(eligible, responses[i])
	}
	return eligible, excluded
}

// analyzeStudents computes the ordered question results and the summary for
// one student population.
func (s *analysisService) analyzeStudents(universe []questionRef, students []models.StudentResponse, variants map[string]*models.ExamVariant, config models.AnalysisConfig) ([]models.QuestionAnalysisResult, models.AnalysisSummary) {
	var questions []models.QuestionAnalysisResult
	var itemScores [][]float64

	for _, ref := range universe {
		question := ref.Definition
		if question.Type == models.MultipleChoice && len(question.Options) == 0 {
			s.logger.Warn("Skipping question with no options", "question_id", ref.ID)
			continue
		}
		if question.CorrectAnswer == "" {
			s.logger.Warn("Skipping question with no correct answer", "question_id", ref.ID)
			continue
		}

		result, scores := s.analyzeQuestion(ref, students, variants, config)
		questions = append(questions, result)
		itemScores = append(itemScores, scores)
	}

	summary := s.buildSummary(questions, students, itemScores)
	return questions, summary
}

// analyzeQuestion computes all statistics for one question. The returned
// score row (1/0 correctness per student in roster order) feeds reliability.
func (s *analysisService) analyzeQuestion(ref questionRef, students []models.StudentResponse, variants map[string]*models.ExamVariant, config models.AnalysisConfig) (models.QuestionAnalysisResult, []float64) {
	scores := make([]float64, len(students))

	var totals []float64
	var correct []bool
	var answers []string
	correctCount := 0

	for i := range students {
		resp, ok := students[i].ResponseByQuestion(ref.ID)
		if !ok {
			continue
		}
		isCorrect := isQuestionCorrect(resp, &students[i], variants)
		if isCorrect {
			correctCount++
			scores[i] = 1
		}
		totals = append(totals, students[i].TotalScore)
		correct = append(correct, isCorrect)
		answers = append(answers, resp.Answer)
	}

	totalResponses := len(totals)

	result := models.QuestionAnalysisResult{
		QuestionID:       ref.ID,
		Text:             ref.Definition.Text,
		Type:             ref.Definition.Type,
		TotalResponses:   totalResponses,
		CorrectResponses: correctCount,
	}

	if totalResponses > 0 {
		result.DifficultyIndex = float64(correctCount) / float64(totalResponses)
	}
	result.DiscriminationIndex = discriminationIndex(totals, correct)
	result.PointBiserial = pointBiserial(totals, correct)

	if config.IncludeDistractorAnalysis {
		result.Distractors = s.buildDistractorAnalysis(ref.Definition, answers, totals)
	}

	result.Significance = s.buildSignificance(ref.Definition, correctCount, totalResponses, config)

	return result, scores
}

// buildDistractorAnalysis breaks responses down per option. Blank answers
// land in the omitted bucket; unexpected answers get their own rows after
// the defined options.
func (s *analysisService) buildDistractorAnalysis(question *models.VariantQuestion, answers []string, totals []float64) *models.DistractorAnalysis {
	analysis := &models.DistractorAnalysis{}

	normalized := make([]string, len(answers))
	for i, answer := range answers {
		normalized[i] = normalizeAnswerToOptionText(answer, question)
		if normalized[i] == "" {
			analysis.OmittedCount++
		}
	}

	options := make([]string, 0, len(question.Options))
	seen := make(map[string]bool)
	for _, opt := range question.Options {
		options = append(options, opt)
		seen[opt] = true
	}
	if question.Type == models.TrueFalse && len(options) == 0 {
		options = append(options, "True", "False")
		seen["True"], seen["False"] = true, true
	}

	var extras []string
	for _, answer := range normalized {
		if answer != "" && !seen[answer] {
			seen[answer] = true
			extras = append(extras, answer)
		}
	}
	sort.Strings(extras)
	options = append(options, extras...)

	correctText := normalizeAnswerToOptionText(question.CorrectAnswer, question)
	totalResponses := len(answers)

	for _, option := range options {
		selected := make([]bool, len(normalized))
		frequency := 0
		for i, answer := range normalized {
			if answer == option {
				selected[i] = true
				frequency++
			}
		}

		stat := models.OptionStat{
			Option:          option,
			Frequency:       frequency,
			IsCorrectOption: option == correctText,
		}
		if totalResponses > 0 {
			stat.Percentage = float64(frequency) / float64(totalResponses)
		}
		stat.DiscriminationIndex = discriminationIndex(totals, selected)
		stat.PointBiserial = pointBiserial(totals, selected)

		analysis.Options = append(analysis.Options, stat)
	}

	return analysis
}

// buildSignificance runs the 1-df goodness-of-fit test against the chance
// baseline for the question type.
func (s *analysisService) buildSignificance(question *models.VariantQuestion, correct, total int, config models.AnalysisConfig) models.StatisticalSignificance {
	stat, pValue := chiSquareGoodnessOfFit(correct, total, chanceRate(question))
	critical := chiSquareCriticalValue(config.ConfidenceLevel)

	significance := models.StatisticalSignificance{
		TestStatistic:    stat,
		PValue:           pValue,
		CriticalValue:    critical,
		DegreesOfFreedom: 1,
		IsSignificant:    stat > critical,
	}
	if total < 30 {
		significance.Warnings = append(significance.Warnings,
			"sample size below 30: chi-square approximation is unreliable")
	}

	return significance
}

// buildSummary aggregates per-question metrics, the score distribution and
// Cronbach's alpha for one student population.
func (s *analysisService) buildSummary(questions []models.QuestionAnalysisResult, students []models.StudentResponse, itemScores [][]float64) models.AnalysisSummary {
	difficulties := make([]float64, 0, len(questions))
	discriminations := make([]float64, 0, len(questions))
	biserials := make([]float64, 0, len(questions))
	for i := range questions {
		difficulties = append(difficulties, questions[i].DifficultyIndex)
		discriminations = append(discriminations, questions[i].DiscriminationIndex)
		biserials = append(biserials, questions[i].PointBiserial)
	}

	percentages := make([]float64, 0, len(students))
	for i := range students {
		percentages = append(percentages, students[i].Percentage())
	}

	return models.AnalysisSummary{
		MeanDifficulty:     meanFloat(difficulties),
		MeanDiscrimination: meanFloat(discriminations),
		MeanPointBiserial:  meanFloat(biserials),
		ScoreDistribution: models.ScoreDistribution{
			Mean:   meanFloat(percentages),
			StdDev: populationStdDev(percentages),
		},
		Reliability: cronbachAlpha(itemScores),
	}
}

// analyzeVariants repeats the pipeline per variant, restricted to that
// variant's students and questions. The minimum-sample rule applies to the
// whole run, not per variant; small variants simply yield their own numbers.
func (s *analysisService) analyzeVariants(variants []models.ExamVariant, students []models.StudentResponse, config models.AnalysisConfig) map[string]*models.VariantAnalysisResult {
	index := variantIndex(variants)
	results := make(map[string]*models.VariantAnalysisResult, len(variants))

	for i := range variants {
		variant := &variants[i]
		var cohort []models.StudentResponse
		for j := range students {
			if students[j].VariantCode == variant.Code {
				cohort = append(cohort, students[j])
			}
		}

		universe := questionUniverse([]models.ExamVariant{*variant})
		questions, summary := s.analyzeStudents(universe, cohort, index, config)

		results[variant.Code] = &models.VariantAnalysisResult{
			VariantCode:  variant.Code,
			StudentCount: len(cohort),
			Questions:    questions,
			Summary:      summary,
		}
	}

	return results
}

// ===== HELPERS =====

// normalizeAnalysisConfig fills unset fields with defaults.
func normalizeAnalysisConfig(config models.AnalysisConfig) models.AnalysisConfig {
	defaults := models.DefaultAnalysisConfig()
	if config.MinSampleSize <= 0 {
		config.MinSampleSize = defaults.MinSampleSize
	}
	if config.ConfidenceLevel <= 0 || config.ConfidenceLevel >= 1 {
		config.ConfidenceLevel = defaults.ConfidenceLevel
	}
	return config
}

// configHash keys the result cache on the effective configuration.
func configHash(config interface{}) string {
	data, err := json.Marshal(config)
	if err != nil {
		return "default"
	}
	h := fnv.New64a()
	h.Write(data)
	return fmt.Sprintf("%x", h.Sum64())
}
