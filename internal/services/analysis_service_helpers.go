package services

import (
	"math"
	"sort"
	"strings"

	"github.com/veritas-edu/analysis-service/internal/models"
)

// ===== BASIC STATISTICS =====

func meanFloat(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// populationStdDev is the uncorrected (population) standard deviation.
func populationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := meanFloat(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func populationVariance(values []float64) float64 {
	sd := populationStdDev(values)
	return sd * sd
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ===== DISCRIMINATION =====

// discriminationGroupSize returns the size of the high/low groups for the
// 27% rule. The group never collapses below one student; at n < 4 both
// groups are a single student, so discrimination degenerates toward 0 when
// totals tie.
func discriminationGroupSize(n int) int {
	if n <= 0 {
		return 0
	}
	size := int(math.Ceil(float64(n) * 0.27))
	if size < 1 {
		size = 1
	}
	return size
}

// discriminationIndex computes (high-group correct rate) - (low-group
// correct rate) with students ranked by total score. correct[i] pairs with
// totals[i]. When every total ties there is no ranking signal and the index
// is exactly 0.
func discriminationIndex(totals []float64, correct []bool) float64 {
	n := len(totals)
	if n == 0 || n != len(correct) {
		return 0
	}

	allEqual := true
	for i := 1; i < n; i++ {
		if totals[i] != totals[0] {
			allEqual = false
			break
		}
	}
	if allEqual {
		return 0
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return totals[order[a]] > totals[order[b]]
	})

	groupSize := discriminationGroupSize(n)
	if groupSize == 0 {
		return 0
	}

	highCorrect := 0
	for _, idx := range order[:groupSize] {
		if correct[idx] {
			highCorrect++
		}
	}
	lowCorrect := 0
	for _, idx := range order[n-groupSize:] {
		if correct[idx] {
			lowCorrect++
		}
	}

	return float64(highCorrect)/float64(groupSize) - float64(lowCorrect)/float64(groupSize)
}

// ===== POINT-BISERIAL =====

// pointBiserial correlates a dichotomous outcome with total score:
// r = ((m1-m2)/sigma) * sqrt(n1*n2/n^2). Defined as 0 when the overall
// standard deviation is 0 or either group is empty.
func pointBiserial(totals []float64, member []bool) float64 {
	n := len(totals)
	if n == 0 || n != len(member) {
		return 0
	}

	sigma := populationStdDev(totals)
	if sigma == 0 {
		return 0
	}

	var sum1, sum2 float64
	var n1, n2 int
	for i, v := range totals {
		if member[i] {
			sum1 += v
			n1++
		} else {
			sum2 += v
			n2++
		}
	}
	if n1 == 0 || n2 == 0 {
		return 0
	}

	m1 := sum1 / float64(n1)
	m2 := sum2 / float64(n2)
	r := (m1 - m2) / sigma * math.Sqrt(float64(n1)*float64(n2)/float64(n*n))

	return clamp(r, -1, 1)
}

// ===== CHI-SQUARE =====

// chiSquareCriticalValue returns the 1-df critical value for the supported
// confidence levels, defaulting to the 0.95 value.
func chiSquareCriticalValue(confidenceLevel float64) float64 {
	switch confidenceLevel {
	case 0.90:
		return 2.706
	case 0.95:
		return 3.841
	case 0.99:
		return 6.635
	default:
		return 3.841
	}
}

// chiSquareGoodnessOfFit tests observed correct/incorrect counts against a
// chance-guessing baseline at one degree of freedom. Returns the test
// statistic and its p-value.
func chiSquareGoodnessOfFit(correct, total int, chanceRate float64) (float64, float64) {
	if total == 0 || chanceRate <= 0 || chanceRate >= 1 {
		return 0, 1
	}

	expectedCorrect := float64(total) * chanceRate
	expectedIncorrect := float64(total) * (1 - chanceRate)

	observedCorrect := float64(correct)
	observedIncorrect := float64(total - correct)

	stat := (observedCorrect-expectedCorrect)*(observedCorrect-expectedCorrect)/expectedCorrect +
		(observedIncorrect-expectedIncorrect)*(observedIncorrect-expectedIncorrect)/expectedIncorrect

	// Survival function of chi-square with 1 df.
	pValue := math.Erfc(math.Sqrt(stat / 2))

	return stat, pValue
}

// chanceRate is the correct-by-guessing baseline for a question.
func chanceRate(question *models.VariantQuestion) float64 {
	if question.Type == models.TrueFalse {
		return 0.5
	}
	if len(question.Options) == 0 {
		return 0
	}
	return 1 / float64(len(question.Options))
}

// ===== RELIABILITY =====

// cronbachAlpha computes internal-consistency reliability from an item-score
// matrix: itemScores[i][j] is student j's score on item i. Returns 0 when
// fewer than two items or zero total variance; the result is clamped to
// [0,1] since negative alpha carries no interpretive value here.
func cronbachAlpha(itemScores [][]float64) float64 {
	k := len(itemScores)
	if k < 2 {
		return 0
	}
	studentCount := len(itemScores[0])
	if studentCount == 0 {
		return 0
	}

	sumItemVariance := 0.0
	for _, scores := range itemScores {
		sumItemVariance += populationVariance(scores)
	}

	totals := make([]float64, studentCount)
	for _, scores := range itemScores {
		for j, v := range scores {
			totals[j] += v
		}
	}
	totalVariance := populationVariance(totals)
	if totalVariance == 0 {
		return 0
	}

	alpha := float64(k) / float64(k-1) * (1 - sumItemVariance/totalVariance)
	return clamp(alpha, 0, 1)
}

// ===== ANSWER NORMALIZATION =====

// normalizeAnswerToOptionText resolves a raw submitted answer to the
// canonical option text of the given question. Single letters map through
// the variant's option ordering (A = first option), booleans map for
// true/false items, and answers already matching an option pass through in
// canonical casing. Anything unresolvable comes back trimmed as-is.
func normalizeAnswerToOptionText(answer string, question *models.VariantQuestion) string {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return ""
	}

	if question.Type == models.TrueFalse {
		switch strings.ToLower(trimmed) {
		case "true", "t":
			return "True"
		case "false", "f":
			return "False"
		}
	}

	if len(trimmed) == 1 {
		upper := strings.ToUpper(trimmed)
		idx := int(upper[0] - 'A')
		if idx >= 0 && idx < len(question.Options) {
			return question.Options[idx]
		}
	}

	for _, opt := range question.Options {
		if strings.EqualFold(opt, trimmed) {
			return opt
		}
	}

	return trimmed
}

// answersMatch grades a submitted answer against the question's correct
// answer, normalizing both sides first.
func answersMatch(submitted string, question *models.VariantQuestion) bool {
	if strings.TrimSpace(submitted) == "" {
		return false
	}
	normalizedSubmitted := normalizeAnswerToOptionText(submitted, question)
	normalizedCorrect := normalizeAnswerToOptionText(question.CorrectAnswer, question)
	if normalizedCorrect == "" {
		return false
	}
	return strings.EqualFold(normalizedSubmitted, normalizedCorrect)
}

// ===== QUESTION UNIVERSE =====

// questionRef is one analyzable question merged across variants: the
// definition comes from the first variant (by code order) that contains it.
type questionRef struct {
	ID         string
	Definition *models.VariantQuestion
}

// questionUniverse returns the union of question IDs across all variants in
// first-appearance order, with variants visited in code order so repeated
// runs are deterministic.
func questionUniverse(variants []models.ExamVariant) []questionRef {
	sorted := make([]models.ExamVariant, len(variants))
	copy(sorted, variants)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].Code < sorted[b].Code
	})

	seen := make(map[string]bool)
	var universe []questionRef
	for vi := range sorted {
		for qi := range sorted[vi].Questions {
			q := &sorted[vi].Questions[qi]
			if seen[q.QuestionID] {
				continue
			}
			seen[q.QuestionID] = true
			universe = append(universe, questionRef{ID: q.QuestionID, Definition: q})
		}
	}
	return universe
}

// variantIndex maps variant codes to their definitions.
func variantIndex(variants []models.ExamVariant) map[string]*models.ExamVariant {
	index := make(map[string]*models.ExamVariant, len(variants))
	for i := range variants {
		index[variants[i].Code] = &variants[i]
	}
	return index
}

// isQuestionCorrect grades one student's answer to one question. When the
// student's variant defines the question, the answer is graded against that
// variant's key; otherwise the recorded correctness flag stands.
func isQuestionCorrect(resp *models.QuestionResponse, student *models.StudentResponse, variants map[string]*models.ExamVariant) bool {
	if variant, ok := variants[student.VariantCode]; ok {
		if question, ok := variant.QuestionByID(resp.QuestionID); ok {
			return answersMatch(resp.Answer, question)
		}
	}
	return resp.IsCorrect
}
