package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/veritas-edu/analysis-service/internal/cache"
	"github.com/veritas-edu/analysis-service/internal/events"
	"github.com/veritas-edu/analysis-service/internal/models"
	"github.com/veritas-edu/analysis-service/internal/validator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAnalysisService() AnalysisService {
	logger := testLogger()
	return NewAnalysisService(nil, cache.NewCacheManager(nil), events.NewMockEventPublisher(logger), logger, validator.New())
}

// fourOptionVariant builds one variant with questionCount four-option
// questions worth one point each. Option A is always correct.
func fourOptionVariant(code string, questionCount int) models.ExamVariant {
	variant := models.ExamVariant{Code: code, Title: "Variant " + code}
	ids := []string{"q1", "q2", "q3", "q4", "q5", "q6"}
	for i := 0; i < questionCount; i++ {
		variant.Questions = append(variant.Questions, models.VariantQuestion{
			QuestionID:    ids[i],
			Text:          "Question " + ids[i],
			Type:          models.MultipleChoice,
			Options:       []string{"Red", "Green", "Blue", "Yellow"},
			CorrectAnswer: "A",
			Points:        1,
		})
	}
	return variant
}

// studentWithAnswers builds a submission answering q1..qN with the given
// letters. Totals are derived from the answer key (A is correct).
func studentWithAnswers(id, variantCode string, answers []string) models.StudentResponse {
	ids := []string{"q1", "q2", "q3", "q4", "q5", "q6"}
	student := models.StudentResponse{
		StudentID:        id,
		VariantCode:      variantCode,
		MaxPossibleScore: float64(len(answers)),
	}
	for i, answer := range answers {
		correct := answer == "A"
		if correct {
			student.TotalScore++
		}
		student.Responses = append(student.Responses, models.QuestionResponse{
			QuestionID: ids[i],
			Answer:     answer,
			IsCorrect:  correct,
			Points:     1,
			MaxPoints:  1,
		})
	}
	return student
}

// eightStudentRoster gives every question exactly 4 of 8 correct answers
// with total scores spread from 0 to 4.
func eightStudentRoster(variantCode string) []models.StudentResponse {
	answerSets := map[string][]string{
		"s1": {"A", "A", "A", "A"},
		"s2": {"A", "A", "A", "B"},
		"s3": {"A", "A", "B", "B"},
		"s4": {"A", "B", "B", "B"},
		"s5": {"B", "A", "A", "A"},
		"s6": {"B", "B", "A", "A"},
		"s7": {"B", "B", "B", "A"},
		"s8": {"B", "B", "B", "B"},
	}
	ids := []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8"}
	roster := make([]models.StudentResponse, 0, len(ids))
	for _, id := range ids {
		roster = append(roster, studentWithAnswers(id, variantCode, answerSets[id]))
	}
	return roster
}

func TestNewAnalysisService(t *testing.T) {
	service := newTestAnalysisService()
	if service == nil {
		t.Fatal("expected non-nil service")
	}
}

func TestAnalyzeExam_DifficultyIndex(t *testing.T) {
	service := newTestAnalysisService()

	result, err := service.AnalyzeExam(context.Background(), &AnalyzeExamRequest{
		ExamID:    "exam-1",
		ExamTitle: "Midterm",
		Variants:  []models.ExamVariant{fourOptionVariant("A", 4)},
		Responses: eightStudentRoster("A"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Questions) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(result.Questions))
	}
	for _, q := range result.Questions {
		if q.TotalResponses != 8 {
			t.Errorf("question %s: expected 8 responses, got %d", q.QuestionID, q.TotalResponses)
		}
		if q.CorrectResponses != 4 {
			t.Errorf("question %s: expected 4 correct, got %d", q.QuestionID, q.CorrectResponses)
		}
		if q.DifficultyIndex != 0.5 {
			t.Errorf("question %s: expected difficulty 0.5, got %f", q.QuestionID, q.DifficultyIndex)
		}
	}

	if result.Metadata.SampleSize != 8 {
		t.Errorf("expected sample size 8, got %d", result.Metadata.SampleSize)
	}
	if result.Metadata.ExcludedStudents != 0 {
		t.Errorf("expected 0 excluded, got %d", result.Metadata.ExcludedStudents)
	}
}

func TestAnalyzeExam_MetricRanges(t *testing.T) {
	service := newTestAnalysisService()

	result, err := service.AnalyzeExam(context.Background(), &AnalyzeExamRequest{
		ExamID:    "exam-1",
		Variants:  []models.ExamVariant{fourOptionVariant("A", 4)},
		Responses: eightStudentRoster("A"),
		Config:    models.AnalysisConfig{IncludeDistractorAnalysis: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, q := range result.Questions {
		if q.DifficultyIndex < 0 || q.DifficultyIndex > 1 {
			t.Errorf("question %s: difficulty out of [0,1]: %f", q.QuestionID, q.DifficultyIndex)
		}
		if q.DiscriminationIndex < -1 || q.DiscriminationIndex > 1 {
			t.Errorf("question %s: discrimination out of [-1,1]: %f", q.QuestionID, q.DiscriminationIndex)
		}
		if q.PointBiserial < -1 || q.PointBiserial > 1 {
			t.Errorf("question %s: point-biserial out of [-1,1]: %f", q.QuestionID, q.PointBiserial)
		}
	}

	if result.Summary.Reliability < 0 || result.Summary.Reliability > 1 {
		t.Errorf("reliability out of [0,1]: %f", result.Summary.Reliability)
	}
}

func TestAnalyzeExam_AllCorrectIsSignificant(t *testing.T) {
	service := newTestAnalysisService()

	variant := fourOptionVariant("A", 1)
	roster := make([]models.StudentResponse, 0, 8)
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8"} {
		roster = append(roster, studentWithAnswers(id, "A", []string{"A"}))
	}

	result, err := service.AnalyzeExam(context.Background(), &AnalyzeExamRequest{
		ExamID:    "exam-1",
		Variants:  []models.ExamVariant{variant},
		Responses: roster,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q := result.Questions[0]
	if q.DifficultyIndex != 1 {
		t.Errorf("expected difficulty 1.0, got %f", q.DifficultyIndex)
	}
	if !q.Significance.IsSignificant {
		t.Error("expected all-correct question to deviate significantly from chance")
	}
	if len(q.Significance.Warnings) == 0 {
		t.Error("expected a small-sample warning for n < 30")
	}
}

func TestAnalyzeExam_ChanceRateNotSignificant(t *testing.T) {
	service := newTestAnalysisService()

	// 2 of 8 correct on a 4-option item is exactly the guessing rate.
	variant := fourOptionVariant("A", 1)
	roster := make([]models.StudentResponse, 0, 8)
	for i, id := range []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8"} {
		answer := "B"
		if i < 2 {
			answer = "A"
		}
		roster = append(roster, studentWithAnswers(id, "A", []string{answer}))
	}

	result, err := service.AnalyzeExam(context.Background(), &AnalyzeExamRequest{
		ExamID:    "exam-1",
		Variants:  []models.ExamVariant{variant},
		Responses: roster,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q := result.Questions[0]
	if q.Significance.TestStatistic != 0 {
		t.Errorf("expected statistic 0 at chance rate, got %f", q.Significance.TestStatistic)
	}
	if q.Significance.IsSignificant {
		t.Error("chance-rate performance must not be significant")
	}
}

func TestAnalyzeExam_Deterministic(t *testing.T) {
	service := newTestAnalysisService()

	req := &AnalyzeExamRequest{
		ExamID:    "exam-1",
		Variants:  []models.ExamVariant{fourOptionVariant("A", 4)},
		Responses: eightStudentRoster("A"),
		Config:    models.AnalysisConfig{IncludeDistractorAnalysis: true, IncludeVariantBreakdown: true},
	}

	first, err := service.AnalyzeExam(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := service.AnalyzeExam(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first.Questions, second.Questions) {
		t.Error("expected identical question results across runs")
	}
	if !reflect.DeepEqual(first.Summary, second.Summary) {
		t.Error("expected identical summaries across runs")
	}
	if !reflect.DeepEqual(first.Variants, second.Variants) {
		t.Error("expected identical variant breakdowns across runs")
	}
}

func TestAnalyzeExam_InsufficientSample(t *testing.T) {
	service := newTestAnalysisService()

	roster := eightStudentRoster("A")[:3]
	_, err := service.AnalyzeExam(context.Background(), &AnalyzeExamRequest{
		ExamID:    "exam-1",
		Variants:  []models.ExamVariant{fourOptionVariant("A", 4)},
		Responses: roster,
	})
	if err == nil {
		t.Fatal("expected insufficient sample error")
	}
	if !IsInsufficientSampleError(err) {
		t.Fatalf("expected InsufficientSampleError, got %v", err)
	}

	var sampleErr *InsufficientSampleError
	if !errors.As(err, &sampleErr) {
		t.Fatal("expected errors.As to match InsufficientSampleError")
	}
	if sampleErr.Required != 5 || sampleErr.Actual != 3 {
		t.Errorf("expected required=5 actual=3, got required=%d actual=%d", sampleErr.Required, sampleErr.Actual)
	}
}

func TestAnalyzeExam_ExcludeIncompleteData(t *testing.T) {
	service := newTestAnalysisService()

	roster := eightStudentRoster("A")
	// s8 only answered the first two questions.
	roster[7].Responses = roster[7].Responses[:2]

	result, err := service.AnalyzeExam(context.Background(), &AnalyzeExamRequest{
		ExamID:    "exam-1",
		Variants:  []models.ExamVariant{fourOptionVariant("A", 4)},
		Responses: roster,
		Config:    models.AnalysisConfig{ExcludeIncompleteData: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Metadata.SampleSize != 7 {
		t.Errorf("expected sample size 7, got %d", result.Metadata.SampleSize)
	}
	if result.Metadata.ExcludedStudents != 1 {
		t.Errorf("expected 1 excluded student, got %d", result.Metadata.ExcludedStudents)
	}
}

func TestAnalyzeExam_ValidationErrors(t *testing.T) {
	service := newTestAnalysisService()

	tests := []struct {
		name string
		req  *AnalyzeExamRequest
	}{
		{name: "nil request", req: nil},
		{
			name: "missing exam id",
			req: &AnalyzeExamRequest{
				Variants:  []models.ExamVariant{fourOptionVariant("A", 4)},
				Responses: eightStudentRoster("A"),
			},
		},
		{
			name: "no variants",
			req: &AnalyzeExamRequest{
				ExamID:    "exam-1",
				Responses: eightStudentRoster("A"),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.AnalyzeExam(context.Background(), tt.req)
			if !errors.Is(err, ErrValidationFailed) {
				t.Errorf("expected validation failure, got %v", err)
			}
		})
	}
}

func TestAnalyzeExam_SkipsUnanswerableQuestions(t *testing.T) {
	service := newTestAnalysisService()

	variant := fourOptionVariant("A", 4)
	variant.Questions[3].CorrectAnswer = ""

	result, err := service.AnalyzeExam(context.Background(), &AnalyzeExamRequest{
		ExamID:    "exam-1",
		Variants:  []models.ExamVariant{variant},
		Responses: eightStudentRoster("A"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Questions) != 3 {
		t.Errorf("expected keyless question to be skipped, got %d questions", len(result.Questions))
	}
}

func TestAnalyzeExam_DistractorAnalysis(t *testing.T) {
	service := newTestAnalysisService()

	variant := fourOptionVariant("A", 1)
	roster := []models.StudentResponse{
		studentWithAnswers("s1", "A", []string{"A"}),
		studentWithAnswers("s2", "A", []string{"A"}),
		studentWithAnswers("s3", "A", []string{"A"}),
		studentWithAnswers("s4", "A", []string{"A"}),
		studentWithAnswers("s5", "A", []string{"B"}),
		studentWithAnswers("s6", "A", []string{"B"}),
		studentWithAnswers("s7", "A", []string{"B"}),
		studentWithAnswers("s8", "A", []string{""}),
	}

	result, err := service.AnalyzeExam(context.Background(), &AnalyzeExamRequest{
		ExamID:    "exam-1",
		Variants:  []models.ExamVariant{variant},
		Responses: roster,
		Config:    models.AnalysisConfig{IncludeDistractorAnalysis: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	distractors := result.Questions[0].Distractors
	if distractors == nil {
		t.Fatal("expected distractor analysis")
	}
	if distractors.OmittedCount != 1 {
		t.Errorf("expected 1 omitted answer, got %d", distractors.OmittedCount)
	}

	byOption := make(map[string]models.OptionStat)
	for _, stat := range distractors.Options {
		byOption[stat.Option] = stat
	}

	red := byOption["Red"]
	if red.Frequency != 4 || !red.IsCorrectOption {
		t.Errorf("expected Red chosen 4 times and marked correct, got %+v", red)
	}
	green := byOption["Green"]
	if green.Frequency != 3 || green.IsCorrectOption {
		t.Errorf("expected Green chosen 3 times as a distractor, got %+v", green)
	}
	if byOption["Blue"].Frequency != 0 {
		t.Errorf("expected Blue unchosen, got %d", byOption["Blue"].Frequency)
	}
}

func TestAnalyzeExam_VariantBreakdown(t *testing.T) {
	service := newTestAnalysisService()

	variantA := fourOptionVariant("A", 4)
	variantB := fourOptionVariant("B", 4)
	roster := append(eightStudentRoster("A"), studentWithAnswers("s9", "B", []string{"A", "A", "B", "B"}))

	result, err := service.AnalyzeExam(context.Background(), &AnalyzeExamRequest{
		ExamID:    "exam-1",
		Variants:  []models.ExamVariant{variantA, variantB},
		Responses: roster,
		Config:    models.AnalysisConfig{IncludeVariantBreakdown: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Variants) != 2 {
		t.Fatalf("expected 2 variant breakdowns, got %d", len(result.Variants))
	}
	if result.Variants["A"].StudentCount != 8 {
		t.Errorf("expected 8 students on variant A, got %d", result.Variants["A"].StudentCount)
	}
	// A single-student cohort still gets its own numbers; the minimum-sample
	// rule applies to the whole run only.
	if result.Variants["B"].StudentCount != 1 {
		t.Errorf("expected 1 student on variant B, got %d", result.Variants["B"].StudentCount)
	}
}

func TestAnalyzeExam_SummaryScoreDistribution(t *testing.T) {
	service := newTestAnalysisService()

	result, err := service.AnalyzeExam(context.Background(), &AnalyzeExamRequest{
		ExamID:    "exam-1",
		Variants:  []models.ExamVariant{fourOptionVariant("A", 4)},
		Responses: eightStudentRoster("A"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Totals 4,3,2,1,3,2,1,0 of 4 average exactly 50%.
	if result.Summary.ScoreDistribution.Mean != 50 {
		t.Errorf("expected mean score 50%%, got %f", result.Summary.ScoreDistribution.Mean)
	}
	if result.Summary.MeanDifficulty != 0.5 {
		t.Errorf("expected mean difficulty 0.5, got %f", result.Summary.MeanDifficulty)
	}
	if result.Summary.ScoreDistribution.StdDev <= 0 {
		t.Errorf("expected positive score spread, got %f", result.Summary.ScoreDistribution.StdDev)
	}
}

func TestNormalizeAnalysisConfig(t *testing.T) {
	tests := []struct {
		name string
		in   models.AnalysisConfig
		want models.AnalysisConfig
	}{
		{
			name: "zero values filled with defaults",
			in:   models.AnalysisConfig{},
			want: models.AnalysisConfig{MinSampleSize: 5, ConfidenceLevel: 0.95},
		},
		{
			name: "explicit values kept",
			in:   models.AnalysisConfig{MinSampleSize: 10, ConfidenceLevel: 0.99},
			want: models.AnalysisConfig{MinSampleSize: 10, ConfidenceLevel: 0.99},
		},
		{
			name: "out of range confidence reset",
			in:   models.AnalysisConfig{MinSampleSize: 10, ConfidenceLevel: 1.5},
			want: models.AnalysisConfig{MinSampleSize: 10, ConfidenceLevel: 0.95},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeAnalysisConfig(tt.in); got != tt.want {
				t.Errorf("normalizeAnalysisConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
