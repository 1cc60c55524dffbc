package models

import "time"

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
)

// VariantQuestion is a question as it appears in one exam variant. The same
// conceptual question may sit at a different position in another variant;
// identity is the question ID, never the position.
type VariantQuestion struct {
	QuestionID    string       `json:"question_id" validate:"required"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type" validate:"required,oneof=multiple_choice true_false"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correct_answer" validate:"required"`
	Points        float64      `json:"points" validate:"min=0"`
}

// ExamVariant is one printed/generated form of the exam with its canonical
// answer key and option ordering.
type ExamVariant struct {
	Code      string            `json:"code" validate:"required"`
	Title     string            `json:"title"`
	Questions []VariantQuestion `json:"questions" validate:"required,min=1,dive"`
}

// QuestionByID returns the variant's definition of a question, if present.
func (v *ExamVariant) QuestionByID(questionID string) (*VariantQuestion, bool) {
	for i := range v.Questions {
		if v.Questions[i].QuestionID == questionID {
			return &v.Questions[i], true
		}
	}
	return nil, false
}

// MaxScore is the total points obtainable on this variant.
func (v *ExamVariant) MaxScore() float64 {
	total := 0.0
	for i := range v.Questions {
		total += v.Questions[i].Points
	}
	return total
}

// QuestionResponse is one student's answer to one question. Immutable once
// recorded.
type QuestionResponse struct {
	QuestionID string  `json:"question_id" validate:"required"`
	Answer     string  `json:"answer"`
	IsCorrect  bool    `json:"is_correct"`
	Points     float64 `json:"points"`
	MaxPoints  float64 `json:"max_points"`
}

// StudentResponse is one student's full submission for one exam sitting.
type StudentResponse struct {
	StudentID        string             `json:"student_id" validate:"required"`
	DisplayID        string             `json:"display_id"`
	VariantCode      string             `json:"variant_code" validate:"required"`
	Responses        []QuestionResponse `json:"responses" validate:"dive"`
	TotalScore       float64            `json:"total_score"`
	MaxPossibleScore float64            `json:"max_possible_score"`
	StartedAt        *time.Time         `json:"started_at,omitempty"`
	SubmittedAt      *time.Time         `json:"submitted_at,omitempty"`
}

// Percentage is the student's score as a percentage of the maximum, 0 when
// the maximum is unknown.
func (s *StudentResponse) Percentage() float64 {
	if s.MaxPossibleScore <= 0 {
		return 0
	}
	return s.TotalScore / s.MaxPossibleScore * 100
}

// ResponseByQuestion returns the student's answer to a question, if any.
func (s *StudentResponse) ResponseByQuestion(questionID string) (*QuestionResponse, bool) {
	for i := range s.Responses {
		if s.Responses[i].QuestionID == questionID {
			return &s.Responses[i], true
		}
	}
	return nil, false
}

// ExamSnapshot is the complete input set for one exam as persisted by the
// upstream generation/upload services: roster, variant definitions and the
// precomputed similarity matrices.
type ExamSnapshot struct {
	ExamID             string            `json:"exam_id"`
	Title              string            `json:"title"`
	Variants           []ExamVariant     `json:"variants"`
	Responses          []StudentResponse `json:"responses"`
	VariantSimilarity  SimilarityMatrix  `json:"variant_similarity"`
	ResponseSimilarity SimilarityMatrix  `json:"response_similarity"`
	UpdatedAt          time.Time         `json:"updated_at"`
}
