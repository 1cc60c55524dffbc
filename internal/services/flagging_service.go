package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/veritas-edu/analysis-service/internal/cache"
	"github.com/veritas-edu/analysis-service/internal/events"
	"github.com/veritas-edu/analysis-service/internal/models"
	"github.com/veritas-edu/analysis-service/internal/repositories"
	"github.com/veritas-edu/analysis-service/internal/validator"
)

type flaggingService struct {
	repo           repositories.Repository
	cacheManager   *cache.CacheManager
	eventPublisher events.EventPublisher
	logger         *slog.Logger
	validator      *validator.Validator
	analysis       AnalysisService
}

func NewFlaggingService(repo repositories.Repository, cacheManager *cache.CacheManager, eventPublisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) FlaggingService {
	return &flaggingService{
		repo:           repo,
		cacheManager:   cacheManager,
		eventPublisher: eventPublisher,
		logger:         logger,
		validator:      validator,
		analysis:       NewAnalysisService(repo, cacheManager, eventPublisher, logger, validator),
	}
}

// ===== INLINE FLAGGING =====

// ProcessSubmissions scores every unique student pair recorded in the
// response-similarity matrix. Pure over its inputs: identical inputs give
// identical output, in descending probability order.
func (s *flaggingService) ProcessSubmissions(ctx context.Context, req *FlagSubmissionsRequest) ([]models.FlaggedSubmission, error) {
	if req == nil || req.ExamResult == nil {
		return nil, NewValidationError("exam_result", "analysis result is required", nil)
	}
	if req.ResponseSimilarity == nil {
		return nil, NewValidationError("response_similarity", "response similarity matrix is required", nil)
	}

	roster := req.ExamResult.Metadata.Responses
	variants := variantIndex(req.Variants)
	config := req.Config
	if config.HighProbabilityThreshold == 0 && config.MediumProbabilityThreshold == 0 {
		config = models.DefaultFlaggingConfig()
	}

	pairs := enumeratePairs(req.ResponseSimilarity)
	classAverage := classAveragePercentage(roster)

	s.logger.Info("Starting integrity flagging run",
		"pairs", len(pairs),
		"roster_size", len(roster),
		"class_average", classAverage,
		"invert_variant_similarity", req.ModelConfig.InvertVariantSimilarity)

	flagged := make([]models.FlaggedSubmission, 0, len(pairs))
	for _, pair := range pairs {
		flagged = append(flagged, s.scorePair(pair, req, roster, variants, config, classAverage))
	}

	sort.SliceStable(flagged, func(a, b int) bool {
		if flagged[a].Probability != flagged[b].Probability {
			return flagged[a].Probability > flagged[b].Probability
		}
		if flagged[a].PairKeyA != flagged[b].PairKeyA {
			return flagged[a].PairKeyA < flagged[b].PairKeyA
		}
		return flagged[a].PairKeyB < flagged[b].PairKeyB
	})

	return flagged, nil
}

// scorePair builds the full audited record for one pair.
func (s *flaggingService) scorePair(pair studentPair, req *FlagSubmissionsRequest, roster []models.StudentResponse, variants map[string]*models.ExamVariant, config models.FlaggingConfig, classAverage float64) models.FlaggedSubmission {
	record := models.FlaggedSubmission{
		PairKeyA:     pair.KeyA,
		PairKeyB:     pair.KeyB,
		ClassAverage: classAverage,
		Band:         models.BandLow,
	}

	nameA, _ := parsePairKey(pair.KeyA)
	nameB, _ := parsePairKey(pair.KeyB)
	record.StudentA = nameA
	record.StudentB = nameB

	studentA := resolveStudent(pair.KeyA, roster)
	studentB := resolveStudent(pair.KeyB, roster)
	if studentA == nil || studentB == nil {
		for _, unmatched := range []struct {
			student *models.StudentResponse
			key     string
		}{{studentA, pair.KeyA}, {studentB, pair.KeyB}} {
			if unmatched.student == nil {
				record.Warnings = append(record.Warnings,
					fmt.Sprintf("could not resolve student identity for key %q", unmatched.key))
			}
		}
		s.logger.Warn("Unresolved student pair", "pair_key_a", pair.KeyA, "pair_key_b", pair.KeyB)
		return record
	}

	record.Resolved = true
	record.StudentA = studentA.StudentID
	record.StudentB = studentB.StudentID
	record.VariantA = studentA.VariantCode
	record.VariantB = studentB.VariantCode
	record.ScoreA = studentA.Percentage()
	record.ScoreB = studentB.Percentage()
	record.RawScoreA = studentA.TotalScore
	record.RawScoreB = studentB.TotalScore

	responseSim, _ := req.ResponseSimilarity.Lookup(pair.KeyA, pair.KeyB)
	record.ResponseSimilarity = responseSim

	// Inversion only applies to a recorded similarity; a missing entry keeps
	// the neutral 0 so absent data never raises the similarity component.
	variantSim, found := req.VariantSimilarity.LookupWithFallback(pair.KeyA, pair.KeyB, record.VariantA, record.VariantB)
	if !found {
		record.Warnings = append(record.Warnings, "no variant similarity recorded for pair; using 0")
	} else if req.ModelConfig.InvertVariantSimilarity {
		variantSim = 1 - clamp(variantSim, 0, 1)
	}
	record.VariantSimilarity = variantSim

	biserialA, okA := variantBiserialAverage(req.VariantResults, record.VariantA)
	if !okA {
		record.Warnings = append(record.Warnings,
			fmt.Sprintf("no variant analysis for %q; discrimination health defaults to 0", record.VariantA))
	}
	biserialB, okB := variantBiserialAverage(req.VariantResults, record.VariantB)
	if !okB && record.VariantB != record.VariantA {
		record.Warnings = append(record.Warnings,
			fmt.Sprintf("no variant analysis for %q; discrimination health defaults to 0", record.VariantB))
	}
	record.BiserialAvgA = biserialA
	record.BiserialAvgB = biserialB

	// Same-variant pairs carry no cross-grading information.
	if record.VariantA != record.VariantB {
		variantA, hasA := variants[record.VariantA]
		variantB, hasB := variants[record.VariantB]
		if hasA && hasB {
			record.CrossGradeA = crossVariantScore(studentA, variantA, variantB)
			record.CrossGradeB = crossVariantScore(studentB, variantB, variantA)
			record.GradeChangeA = record.CrossGradeA - record.ScoreA
			record.GradeChangeB = record.CrossGradeB - record.ScoreB
		} else {
			record.Warnings = append(record.Warnings, "missing variant definition for cross-grading; using 0")
		}
	}

	record.Probability = cheatingProbability(
		record.VariantSimilarity, record.ResponseSimilarity,
		record.ScoreA, record.ScoreB,
		record.CrossGradeA, record.CrossGradeB,
		classAverage,
		record.BiserialAvgA, record.BiserialAvgB)
	record.Band = config.Band(record.Probability)

	return record
}

// ===== SNAPSHOT-BACKED FLAGGING =====

// ProcessSubmissionsByExam loads the stored snapshot, runs the analysis
// pipeline and then the flagging pipeline, caching the bundled result.
// Events are only published for fresh runs, never for cache hits.
func (s *flaggingService) ProcessSubmissionsByExam(ctx context.Context, examID string, config models.FlaggingConfig, modelConfig models.ModelConfig) (*FlaggingRunResult, error) {
	cacheKey := fmt.Sprintf("exam:%s:%s", examID, configHash(struct {
		Config      models.FlaggingConfig `json:"config"`
		ModelConfig models.ModelConfig    `json:"model_config"`
	}{config, modelConfig}))

	var result FlaggingRunResult
	computed := false
	err := s.cacheManager.Flagging.CacheOrExecute(ctx, cacheKey, &result, cache.FlaggingCacheConfig.TTL, func() (interface{}, error) {
		snapshot, err := s.repo.Snapshot().GetByExamID(ctx, examID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, fmt.Errorf("%w: exam snapshot %s", ErrNotFound, examID)
			}
			return nil, fmt.Errorf("failed to load exam snapshot: %w", err)
		}

		analysisConfig := models.DefaultAnalysisConfig()
		analysisConfig.IncludeVariantBreakdown = true

		examResult, err := s.analysis.AnalyzeExam(ctx, &AnalyzeExamRequest{
			ExamID:    snapshot.ExamID,
			ExamTitle: snapshot.Title,
			Variants:  snapshot.Variants,
			Responses: snapshot.Responses,
			Config:    analysisConfig,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to analyze exam for flagging: %w", err)
		}

		flagged, err := s.ProcessSubmissions(ctx, &FlagSubmissionsRequest{
			VariantSimilarity:  snapshot.VariantSimilarity,
			ResponseSimilarity: snapshot.ResponseSimilarity,
			Variants:           snapshot.Variants,
			ExamResult:         examResult,
			VariantResults:     examResult.Variants,
			Config:             config,
			ModelConfig:        modelConfig,
		})
		if err != nil {
			return nil, err
		}

		computed = true
		return &FlaggingRunResult{
			ExamID:  examID,
			Flagged: flagged,
			Summary: s.GetFlaggingSummary(flagged),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	if !computed {
		s.logger.Debug("Flagging cache hit", "exam_id", examID)
		return &result, nil
	}

	highBand := 0
	topProbability := 0.0
	for i := range result.Flagged {
		if result.Flagged[i].Band == models.BandHigh {
			highBand++
		}
		if result.Flagged[i].Probability > topProbability {
			topProbability = result.Flagged[i].Probability
		}
	}
	event := events.NewEvent(events.EventIntegrityPairsFlagged, events.IntegrityPairsFlaggedEvent{
		ExamID:         examID,
		TotalPairs:     len(result.Flagged),
		HighBandPairs:  highBand,
		TopProbability: topProbability,
	})
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish flagging event", "exam_id", examID, "error", err)
	}

	return &result, nil
}

// ===== SUMMARY =====

// GetFlaggingSummary reduces a flagged list to reporting aggregates. Purely
// a reporting aid; scoring never consults it.
func (s *flaggingService) GetFlaggingSummary(flagged []models.FlaggedSubmission) models.FlaggingSummary {
	summary := models.FlaggingSummary{TotalFlagged: len(flagged)}
	if len(flagged) == 0 {
		return summary
	}

	students := make(map[string]bool)
	probabilitySum := 0.0
	similaritySum := 0.0
	for i := range flagged {
		students[flagged[i].PairKeyA] = true
		students[flagged[i].PairKeyB] = true
		probabilitySum += flagged[i].Probability
		similaritySum += flagged[i].ResponseSimilarity
	}

	summary.UniqueStudents = len(students)
	summary.MeanProbability = probabilitySum / float64(len(flagged))
	summary.MeanSimilarity = similaritySum / float64(len(flagged))

	return summary
}
