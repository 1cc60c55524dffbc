package models

import "testing"

func TestExamVariant_QuestionByID(t *testing.T) {
	variant := ExamVariant{
		Code: "A",
		Questions: []VariantQuestion{
			{QuestionID: "q1", Points: 1},
			{QuestionID: "q2", Points: 2},
		},
	}

	q, ok := variant.QuestionByID("q2")
	if !ok || q.Points != 2 {
		t.Errorf("expected q2 with 2 points, got (%+v, %v)", q, ok)
	}

	if _, ok := variant.QuestionByID("q9"); ok {
		t.Error("expected miss for unknown question")
	}
}

func TestExamVariant_MaxScore(t *testing.T) {
	variant := ExamVariant{
		Questions: []VariantQuestion{
			{QuestionID: "q1", Points: 1},
			{QuestionID: "q2", Points: 2.5},
		},
	}
	if got := variant.MaxScore(); got != 3.5 {
		t.Errorf("expected 3.5, got %f", got)
	}

	empty := ExamVariant{}
	if got := empty.MaxScore(); got != 0 {
		t.Errorf("expected 0 for empty variant, got %f", got)
	}
}

func TestStudentResponse_Percentage(t *testing.T) {
	tests := []struct {
		name    string
		student StudentResponse
		want    float64
	}{
		{name: "half marks", student: StudentResponse{TotalScore: 2, MaxPossibleScore: 4}, want: 50},
		{name: "full marks", student: StudentResponse{TotalScore: 4, MaxPossibleScore: 4}, want: 100},
		{name: "unknown maximum", student: StudentResponse{TotalScore: 4}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.student.Percentage(); got != tt.want {
				t.Errorf("Percentage() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestStudentResponse_ResponseByQuestion(t *testing.T) {
	student := StudentResponse{
		Responses: []QuestionResponse{
			{QuestionID: "q1", Answer: "A"},
			{QuestionID: "q2", Answer: "B"},
		},
	}

	resp, ok := student.ResponseByQuestion("q2")
	if !ok || resp.Answer != "B" {
		t.Errorf("expected q2 answer B, got (%+v, %v)", resp, ok)
	}

	if _, ok := student.ResponseByQuestion("q9"); ok {
		t.Error("expected miss for unanswered question")
	}
}
