package services

import (
	"math"
	"sort"
	"strings"

	"github.com/veritas-edu/analysis-service/internal/models"
)

// ===== PAIR ENUMERATION =====

// studentPair is one canonical unordered pair of similarity-matrix keys,
// with KeyA < KeyB lexicographically.
type studentPair struct {
	KeyA string
	KeyB string
}

// enumeratePairs extracts every unique unordered pair recorded in the
// response-similarity matrix, excluding self-pairs and mirrored duplicates.
// Output order is deterministic.
func enumeratePairs(matrix models.SimilarityMatrix) []studentPair {
	seen := make(map[studentPair]bool)
	var pairs []studentPair

	for a, row := range matrix {
		for b := range row {
			if a == b {
				continue
			}
			pair := studentPair{KeyA: a, KeyB: b}
			if pair.KeyA > pair.KeyB {
				pair.KeyA, pair.KeyB = pair.KeyB, pair.KeyA
			}
			if seen[pair] {
				continue
			}
			seen[pair] = true
			pairs = append(pairs, pair)
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].KeyA != pairs[j].KeyA {
			return pairs[i].KeyA < pairs[j].KeyA
		}
		return pairs[i].KeyB < pairs[j].KeyB
	})

	return pairs
}

// parsePairKey splits a similarity-matrix key of the form "Name (Variant)"
// into its name and variant code. Keys without a variant suffix yield an
// empty code.
func parsePairKey(key string) (name, variantCode string) {
	trimmed := strings.TrimSpace(key)
	if strings.HasSuffix(trimmed, ")") {
		if open := strings.LastIndex(trimmed, "("); open > 0 {
			name = strings.TrimSpace(trimmed[:open])
			variantCode = strings.TrimSpace(trimmed[open+1 : len(trimmed)-1])
			return name, variantCode
		}
	}
	return trimmed, ""
}

// ===== IDENTITY RESOLUTION =====

// resolveStudent matches one pair key against the roster, trying exact
// display-ID, exact raw-ID, variant-scoped case-insensitive name, then
// substring. Returns nil when nothing matches; callers emit an unresolved
// record instead of substituting placeholder scores.
func resolveStudent(key string, roster []models.StudentResponse) *models.StudentResponse {
	name, variantCode := parsePairKey(key)

	for i := range roster {
		if roster[i].DisplayID != "" && roster[i].DisplayID == key {
			return &roster[i]
		}
	}

	for i := range roster {
		if roster[i].StudentID == key || roster[i].StudentID == name {
			return &roster[i]
		}
	}

	if variantCode != "" {
		for i := range roster {
			if roster[i].VariantCode == variantCode && strings.EqualFold(rosterName(&roster[i]), name) {
				return &roster[i]
			}
		}
	}

	lowerName := strings.ToLower(name)
	for i := range roster {
		candidate := strings.ToLower(rosterName(&roster[i]))
		if candidate != "" && (strings.Contains(candidate, lowerName) || strings.Contains(lowerName, candidate)) {
			return &roster[i]
		}
	}

	return nil
}

func rosterName(student *models.StudentResponse) string {
	if student.DisplayID != "" {
		name, _ := parsePairKey(student.DisplayID)
		return name
	}
	return student.StudentID
}

// ===== CROSS-VARIANT REGRADING =====

// crossVariantScore regrades a student's raw answers against another
// variant's answer key and returns the resulting percentage. Letter answers
// resolve to option text through the student's own variant ordering before
// comparison against the other variant's key.
func crossVariantScore(student *models.StudentResponse, ownVariant, otherVariant *models.ExamVariant) float64 {
	maxScore := otherVariant.MaxScore()
	if maxScore <= 0 {
		return 0
	}

	earned := 0.0
	for i := range otherVariant.Questions {
		question := &otherVariant.Questions[i]
		resp, ok := student.ResponseByQuestion(question.QuestionID)
		if !ok {
			continue
		}

		submitted := resp.Answer
		if ownVariant != nil {
			if ownQuestion, ok := ownVariant.QuestionByID(question.QuestionID); ok {
				submitted = normalizeAnswerToOptionText(resp.Answer, ownQuestion)
			}
		}

		if answersMatch(submitted, question) {
			earned += question.Points
		}
	}

	return earned / maxScore * 100
}

// ===== PROBABILITY MODEL =====

// cheatingProbability combines the three component signals. Every input is
// clamped to its valid range first; the result stays in [0, 0.999] so no
// pair is ever reported as certain.
func cheatingProbability(variantSim, responseSim, scoreA, scoreB, crossGradeA, crossGradeB, classAverage, biserialAvgA, biserialAvgB float64) float64 {
	variantSim = clamp(variantSim, 0, 1)
	responseSim = clamp(responseSim, 0, 1)
	scoreA = clamp(scoreA, 0, 100)
	scoreB = clamp(scoreB, 0, 100)
	crossGradeA = clamp(crossGradeA, 0, 100)
	crossGradeB = clamp(crossGradeB, 0, 100)
	biserialAvgA = clamp(biserialAvgA, -1, 1)
	biserialAvgB = clamp(biserialAvgB, -1, 1)

	similarity := 0.0
	if variantSim+responseSim > 0 {
		similarity = variantSim * responseSim / (variantSim + responseSim)
	}

	score := 0.0
	if classAverage > 0 {
		score = (scoreA + scoreB + math.Max(crossGradeA, crossGradeB)) / classAverage
	}

	health := math.Abs(biserialAvgA * biserialAvgB)

	return clamp(math.Sqrt(similarity*score*health), 0, 0.999)
}

// variantBiserialAverage reads a variant's mean point-biserial from the
// per-variant analysis, 0 when the variant is unknown.
func variantBiserialAverage(results map[string]*models.VariantAnalysisResult, variantCode string) (float64, bool) {
	if result, ok := results[variantCode]; ok && result != nil {
		return result.Summary.MeanPointBiserial, true
	}
	return 0, false
}

// classAveragePercentage is the roster-wide mean percentage score, computed
// once per run so every pair sees the same baseline.
func classAveragePercentage(roster []models.StudentResponse) float64 {
	if len(roster) == 0 {
		return 0
	}
	sum := 0.0
	for i := range roster {
		sum += roster[i].Percentage()
	}
	return sum / float64(len(roster))
}
