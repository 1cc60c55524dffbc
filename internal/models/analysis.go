package models

import "time"

// AnalysisConfig controls one item-analysis run.
type AnalysisConfig struct {
	MinSampleSize             int     `json:"min_sample_size" validate:"min=1"`
	ConfidenceLevel           float64 `json:"confidence_level" validate:"gt=0,lt=1"`
	ExcludeIncompleteData     bool    `json:"exclude_incomplete_data"`
	IncludeDistractorAnalysis bool    `json:"include_distractor_analysis"`
	IncludeVariantBreakdown   bool    `json:"include_variant_breakdown"`
}

// DefaultAnalysisConfig returns the configuration used when the caller does
// not override it.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		MinSampleSize:             5,
		ConfidenceLevel:           0.95,
		ExcludeIncompleteData:     false,
		IncludeDistractorAnalysis: true,
		IncludeVariantBreakdown:   true,
	}
}

// OptionStat describes how one answer option performed, including its own
// discrimination and point-biserial computed on "chose this option" vs not.
// Well-functioning distractors show negative point-biserial.
type OptionStat struct {
	Option              string  `json:"option"`
	Frequency           int     `json:"frequency"`
	Percentage          float64 `json:"percentage"`
	DiscriminationIndex float64 `json:"discrimination_index"`
	PointBiserial       float64 `json:"point_biserial"`
	IsCorrectOption     bool    `json:"is_correct_option"`
}

// DistractorAnalysis is the per-option breakdown for one question. Blank
// answers are counted in OmittedCount rather than as an option.
type DistractorAnalysis struct {
	Options      []OptionStat `json:"options"`
	OmittedCount int          `json:"omitted_count"`
}

// StatisticalSignificance records a chi-square goodness-of-fit test of the
// observed correct/incorrect split against the chance-guessing baseline.
type StatisticalSignificance struct {
	TestStatistic    float64  `json:"test_statistic"`
	PValue           float64  `json:"p_value"`
	CriticalValue    float64  `json:"critical_value"`
	DegreesOfFreedom int      `json:"degrees_of_freedom"`
	IsSignificant    bool     `json:"is_significant"`
	Warnings         []string `json:"warnings,omitempty"`
}

// QuestionAnalysisResult is the derived statistics record for one question,
// merged across every variant the question appears in.
type QuestionAnalysisResult struct {
	QuestionID          string                  `json:"question_id"`
	Text                string                  `json:"text"`
	Type                QuestionType            `json:"type"`
	TotalResponses      int                     `json:"total_responses"`
	CorrectResponses    int                     `json:"correct_responses"`
	DifficultyIndex     float64                 `json:"difficulty_index"`
	DiscriminationIndex float64                 `json:"discrimination_index"`
	PointBiserial       float64                 `json:"point_biserial"`
	Distractors         *DistractorAnalysis     `json:"distractors,omitempty"`
	Significance        StatisticalSignificance `json:"significance"`
}

// ScoreDistribution summarizes the distribution of percentage scores.
type ScoreDistribution struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// AnalysisSummary aggregates the per-question metrics of one exam or one
// variant. Reliability is Cronbach's alpha over the item-score matrix.
type AnalysisSummary struct {
	MeanDifficulty     float64           `json:"mean_difficulty"`
	MeanDiscrimination float64           `json:"mean_discrimination"`
	MeanPointBiserial  float64           `json:"mean_point_biserial"`
	ScoreDistribution  ScoreDistribution `json:"score_distribution"`
	Reliability        float64           `json:"reliability"`
}

// VariantAnalysisResult repeats the analysis pipeline restricted to the
// students of one variant.
type VariantAnalysisResult struct {
	VariantCode  string                   `json:"variant_code"`
	StudentCount int                      `json:"student_count"`
	Questions    []QuestionAnalysisResult `json:"questions"`
	Summary      AnalysisSummary          `json:"summary"`
}

// AnalysisMetadata describes the sample an analysis run was computed on.
type AnalysisMetadata struct {
	SampleSize       int               `json:"sample_size"`
	ExcludedStudents int               `json:"excluded_students"`
	TotalVariants    int               `json:"total_variants"`
	AnalyzedAt       time.Time         `json:"analyzed_at"`
	Responses        []StudentResponse `json:"responses"`
}

// BiPointAnalysisResult is the full output of one item-analysis run. It is a
// plain serializable structure with no behavior; safe to cache or export.
type BiPointAnalysisResult struct {
	AnalysisID string                            `json:"analysis_id"`
	ExamID     string                            `json:"exam_id"`
	ExamTitle  string                            `json:"exam_title"`
	Config     AnalysisConfig                    `json:"config"`
	Questions  []QuestionAnalysisResult          `json:"questions"`
	Metadata   AnalysisMetadata                  `json:"metadata"`
	Summary    AnalysisSummary                   `json:"summary"`
	Variants   map[string]*VariantAnalysisResult `json:"variants,omitempty"`
}
