package services

import (
	"testing"

	"github.com/veritas-edu/analysis-service/internal/models"
)

func TestEnumeratePairs(t *testing.T) {
	keys := []string{
		"Alice (V1)", "Bob (V1)", "Carol (V1)",
		"Dave (V2)", "Erin (V2)", "Frank (V2)",
	}

	// Full symmetric matrix including the diagonal.
	matrix := models.SimilarityMatrix{}
	for _, a := range keys {
		matrix[a] = map[string]float64{}
		for _, b := range keys {
			matrix[a][b] = 0.5
		}
	}

	pairs := enumeratePairs(matrix)

	if len(pairs) != 15 {
		t.Fatalf("expected 15 unique pairs from 6 students, got %d", len(pairs))
	}

	seen := make(map[studentPair]bool)
	for i, pair := range pairs {
		if pair.KeyA == pair.KeyB {
			t.Errorf("self-pair leaked through: %+v", pair)
		}
		if pair.KeyA > pair.KeyB {
			t.Errorf("pair not in canonical order: %+v", pair)
		}
		if seen[pair] {
			t.Errorf("duplicate pair: %+v", pair)
		}
		seen[pair] = true

		if i > 0 {
			prev := pairs[i-1]
			if prev.KeyA > pair.KeyA || (prev.KeyA == pair.KeyA && prev.KeyB > pair.KeyB) {
				t.Errorf("pairs out of order at %d: %+v before %+v", i, prev, pair)
			}
		}
	}
}

func TestEnumeratePairs_OneSidedMatrix(t *testing.T) {
	// Upper-triangle-only storage must yield the same pairs.
	matrix := models.SimilarityMatrix{
		"Alice (V1)": {"Bob (V1)": 0.9, "Carol (V1)": 0.2},
		"Bob (V1)":   {"Carol (V1)": 0.3},
	}

	pairs := enumeratePairs(matrix)
	if len(pairs) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(pairs))
	}
}

func TestParsePairKey(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		wantName    string
		wantVariant string
	}{
		{name: "name with variant", key: "Alice Johnson (V1)", wantName: "Alice Johnson", wantVariant: "V1"},
		{name: "bare name", key: "Alice Johnson", wantName: "Alice Johnson", wantVariant: ""},
		{name: "surrounding whitespace", key: "  Bob (V2)  ", wantName: "Bob", wantVariant: "V2"},
		{name: "parenthetical in name", key: "Ann (Smith) (V3)", wantName: "Ann (Smith)", wantVariant: "V3"},
		{name: "leading parenthesis only", key: "(V1)", wantName: "(V1)", wantVariant: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, variant := parsePairKey(tt.key)
			if name != tt.wantName || variant != tt.wantVariant {
				t.Errorf("parsePairKey(%q) = (%q, %q), want (%q, %q)",
					tt.key, name, variant, tt.wantName, tt.wantVariant)
			}
		})
	}
}

func TestResolveStudent(t *testing.T) {
	roster := []models.StudentResponse{
		{StudentID: "stu-1", DisplayID: "Alice Johnson (V1)", VariantCode: "V1"},
		{StudentID: "stu-2", DisplayID: "Bob Lee (V1)", VariantCode: "V1"},
		{StudentID: "Carol Diaz", VariantCode: "V2"},
		{StudentID: "stu-4", DisplayID: "Dana Wu (V2)", VariantCode: "V2"},
	}

	tests := []struct {
		name   string
		key    string
		wantID string
	}{
		{name: "exact display id", key: "Alice Johnson (V1)", wantID: "stu-1"},
		{name: "exact student id via name part", key: "Carol Diaz (V2)", wantID: "Carol Diaz"},
		{name: "variant-scoped case-insensitive name", key: "bob lee (V1)", wantID: "stu-2"},
		{name: "substring match", key: "Dana", wantID: "stu-4"},
		{name: "no match", key: "Zed (V9)", wantID: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveStudent(tt.key, roster)
			if tt.wantID == "" {
				if got != nil {
					t.Errorf("expected no match, got %s", got.StudentID)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected match %s, got nil", tt.wantID)
			}
			if got.StudentID != tt.wantID {
				t.Errorf("resolved %s, want %s", got.StudentID, tt.wantID)
			}
		})
	}
}

func TestCrossVariantScore(t *testing.T) {
	// Same question, different option ordering: Red is A on V1 and D on V2.
	ownVariant := &models.ExamVariant{
		Code: "V1",
		Questions: []models.VariantQuestion{
			{QuestionID: "q1", Type: models.MultipleChoice, Options: []string{"Red", "Green", "Blue", "Yellow"}, CorrectAnswer: "A", Points: 1},
			{QuestionID: "q2", Type: models.MultipleChoice, Options: []string{"Red", "Green", "Blue", "Yellow"}, CorrectAnswer: "A", Points: 1},
		},
	}
	otherVariant := &models.ExamVariant{
		Code: "V2",
		Questions: []models.VariantQuestion{
			{QuestionID: "q1", Type: models.MultipleChoice, Options: []string{"Yellow", "Blue", "Green", "Red"}, CorrectAnswer: "D", Points: 1},
			{QuestionID: "q2", Type: models.MultipleChoice, Options: []string{"Green", "Red", "Blue", "Yellow"}, CorrectAnswer: "B", Points: 1},
		},
	}

	t.Run("correct answers survive regrading", func(t *testing.T) {
		student := &models.StudentResponse{
			StudentID:   "stu-1",
			VariantCode: "V1",
			Responses: []models.QuestionResponse{
				{QuestionID: "q1", Answer: "A"},
				{QuestionID: "q2", Answer: "A"},
			},
		}
		if got := crossVariantScore(student, ownVariant, otherVariant); got != 100 {
			t.Errorf("expected 100, got %f", got)
		}
	})

	t.Run("wrong answers stay wrong", func(t *testing.T) {
		student := &models.StudentResponse{
			StudentID:   "stu-2",
			VariantCode: "V1",
			Responses: []models.QuestionResponse{
				{QuestionID: "q1", Answer: "B"},
				{QuestionID: "q2", Answer: "C"},
			},
		}
		if got := crossVariantScore(student, ownVariant, otherVariant); got != 0 {
			t.Errorf("expected 0, got %f", got)
		}
	})

	t.Run("partial credit", func(t *testing.T) {
		student := &models.StudentResponse{
			StudentID:   "stu-3",
			VariantCode: "V1",
			Responses: []models.QuestionResponse{
				{QuestionID: "q1", Answer: "A"},
				{QuestionID: "q2", Answer: "D"},
			},
		}
		if got := crossVariantScore(student, ownVariant, otherVariant); got != 50 {
			t.Errorf("expected 50, got %f", got)
		}
	})

	t.Run("zero max score", func(t *testing.T) {
		empty := &models.ExamVariant{Code: "V3"}
		student := &models.StudentResponse{StudentID: "stu-4"}
		if got := crossVariantScore(student, ownVariant, empty); got != 0 {
			t.Errorf("expected 0 for empty variant, got %f", got)
		}
	})
}

func TestCheatingProbability(t *testing.T) {
	t.Run("zero similarity gives zero", func(t *testing.T) {
		if got := cheatingProbability(0, 0, 90, 90, 0, 0, 70, 0.8, 0.8); got != 0 {
			t.Errorf("expected 0, got %f", got)
		}
	})

	t.Run("zero class average gives zero", func(t *testing.T) {
		if got := cheatingProbability(0.9, 0.9, 90, 90, 0, 0, 0, 0.8, 0.8); got != 0 {
			t.Errorf("expected 0, got %f", got)
		}
	})

	t.Run("zero discrimination health gives zero", func(t *testing.T) {
		if got := cheatingProbability(0.9, 0.9, 90, 90, 0, 0, 70, 0, 0.8); got != 0 {
			t.Errorf("expected 0, got %f", got)
		}
	})

	t.Run("never reaches certainty", func(t *testing.T) {
		got := cheatingProbability(1, 1, 100, 100, 100, 100, 1, 1, 1)
		if got != 0.999 {
			t.Errorf("expected clamp at 0.999, got %f", got)
		}
	})

	t.Run("always in range", func(t *testing.T) {
		inputs := [][9]float64{
			{0.5, 0.5, 50, 50, 0, 0, 50, 0.3, 0.3},
			{0.9, 0.95, 100, 100, 0, 0, 58, 0.8, 0.8},
			{-5, 7, 250, -10, 300, -4, 60, 9, -9},
		}
		for _, in := range inputs {
			got := cheatingProbability(in[0], in[1], in[2], in[3], in[4], in[5], in[6], in[7], in[8])
			if got < 0 || got > 0.999 {
				t.Errorf("probability out of [0,0.999] for %v: %f", in, got)
			}
		}
	})
}

func TestClassAveragePercentage(t *testing.T) {
	roster := []models.StudentResponse{
		{TotalScore: 4, MaxPossibleScore: 4},
		{TotalScore: 2, MaxPossibleScore: 4},
		{TotalScore: 0, MaxPossibleScore: 4},
	}
	if got := classAveragePercentage(roster); got != 50 {
		t.Errorf("expected 50, got %f", got)
	}

	if got := classAveragePercentage(nil); got != 0 {
		t.Errorf("expected 0 for empty roster, got %f", got)
	}
}

func TestVariantBiserialAverage(t *testing.T) {
	results := map[string]*models.VariantAnalysisResult{
		"V1": {Summary: models.AnalysisSummary{MeanPointBiserial: 0.42}},
		"V2": nil,
	}

	if got, ok := variantBiserialAverage(results, "V1"); !ok || got != 0.42 {
		t.Errorf("expected (0.42, true), got (%f, %v)", got, ok)
	}
	if got, ok := variantBiserialAverage(results, "V2"); ok || got != 0 {
		t.Errorf("expected (0, false) for nil entry, got (%f, %v)", got, ok)
	}
	if got, ok := variantBiserialAverage(results, "V9"); ok || got != 0 {
		t.Errorf("expected (0, false) for unknown variant, got (%f, %v)", got, ok)
	}
}
