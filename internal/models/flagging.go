package models

// SimilarityMatrix is an immutable, symmetric student-pair similarity mapping
// produced by the external similarity service. Values are in [0,1] with the
// diagonal at 1.0. The matrix may be stored in either orientation; Lookup
// tries direct then mirrored entries, and LookupWithFallback additionally
// tries a pair of group keys (e.g. variant codes).
type SimilarityMatrix map[string]map[string]float64

// Lookup returns the similarity for (a,b), trying the mirrored entry when
// the direct one is absent.
func (m SimilarityMatrix) Lookup(a, b string) (float64, bool) {
	if row, ok := m[a]; ok {
		if v, ok := row[b]; ok {
			return v, true
		}
	}
	if row, ok := m[b]; ok {
		if v, ok := row[a]; ok {
			return v, true
		}
	}
	return 0, false
}

// LookupWithFallback resolves (a,b) directly or mirrored, then falls back to
// the group keys (fa,fb). Returns false only when every lookup misses.
func (m SimilarityMatrix) LookupWithFallback(a, b, fa, fb string) (float64, bool) {
	if v, ok := m.Lookup(a, b); ok {
		return v, true
	}
	if fa != "" && fb != "" {
		if v, ok := m.Lookup(fa, fb); ok {
			return v, true
		}
	}
	return 0, false
}

// Keys returns the union of row keys and column keys observed in the matrix.
func (m SimilarityMatrix) Keys() []string {
	seen := make(map[string]struct{})
	for a, row := range m {
		seen[a] = struct{}{}
		for b := range row {
			seen[b] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	return keys
}

// ProbabilityBand buckets a cheating probability for display.
type ProbabilityBand string

const (
	BandHigh   ProbabilityBand = "high"
	BandMedium ProbabilityBand = "medium"
	BandLow    ProbabilityBand = "low"
)

// FlaggingConfig holds display thresholds for probability bucketing. The
// thresholds never filter or alter engine scoring.
type FlaggingConfig struct {
	HighProbabilityThreshold   float64 `json:"high_probability_threshold" validate:"gte=0,lte=1"`
	MediumProbabilityThreshold float64 `json:"medium_probability_threshold" validate:"gte=0,lte=1"`
}

func DefaultFlaggingConfig() FlaggingConfig {
	return FlaggingConfig{
		HighProbabilityThreshold:   0.7,
		MediumProbabilityThreshold: 0.4,
	}
}

// Band returns the display bucket for a probability.
func (c FlaggingConfig) Band(p float64) ProbabilityBand {
	switch {
	case p >= c.HighProbabilityThreshold:
		return BandHigh
	case p >= c.MediumProbabilityThreshold:
		return BandMedium
	default:
		return BandLow
	}
}

// ModelConfig tunes the probability model itself.
type ModelConfig struct {
	// InvertVariantSimilarity reframes low seating/order similarity combined
	// with identical answers as more suspicious than adjacent near-identical
	// variants: the engine uses 1-s instead of s.
	InvertVariantSimilarity bool `json:"invert_variant_similarity"`
}

// FlaggedSubmission is the scored record for one unique unordered student
// pair. Created fresh on every flagging run and never mutated; all component
// metrics are retained for auditability.
type FlaggedSubmission struct {
	StudentA string `json:"student_a"`
	StudentB string `json:"student_b"`
	PairKeyA string `json:"pair_key_a"`
	PairKeyB string `json:"pair_key_b"`

	VariantA string `json:"variant_a"`
	VariantB string `json:"variant_b"`

	// Percentage and raw scores as originally graded.
	ScoreA    float64 `json:"score_a"`
	ScoreB    float64 `json:"score_b"`
	RawScoreA float64 `json:"raw_score_a"`
	RawScoreB float64 `json:"raw_score_b"`

	// Component metrics of the probability model.
	VariantSimilarity  float64 `json:"variant_similarity"`
	ResponseSimilarity float64 `json:"response_similarity"`
	BiserialAvgA       float64 `json:"biserial_avg_a"`
	BiserialAvgB       float64 `json:"biserial_avg_b"`
	ClassAverage       float64 `json:"class_average"`

	// Cross-variant regrading; exactly 0 for same-variant pairs.
	CrossGradeA  float64 `json:"cross_grade_a"`
	CrossGradeB  float64 `json:"cross_grade_b"`
	GradeChangeA float64 `json:"grade_change_a"`
	GradeChangeB float64 `json:"grade_change_b"`

	Probability float64         `json:"probability"`
	Band        ProbabilityBand `json:"band"`

	// Resolved is false when either pair key could not be matched to the
	// roster; such records carry zero probability and a warning instead of
	// placeholder scores.
	Resolved bool     `json:"resolved"`
	Warnings []string `json:"warnings,omitempty"`
}

// FlaggingSummary is a reporting aid reduced from a (possibly filtered)
// flagged-pair list. Not part of the scoring contract.
type FlaggingSummary struct {
	TotalFlagged    int     `json:"total_flagged"`
	UniqueStudents  int     `json:"unique_students"`
	MeanProbability float64 `json:"mean_probability"`
	MeanSimilarity  float64 `json:"mean_similarity"`
}
