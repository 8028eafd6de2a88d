package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
	QuestionTypeEssay          QuestionType = "essay"
)

// AutoGradable reports whether the type is scored by the engine.
// Essays go to manual review and never enter the automatic denominator.
func (t QuestionType) AutoGradable() bool {
	return t == QuestionTypeMultipleChoice || t == QuestionTypeTrueFalse || t == QuestionTypeShortAnswer
}

// Question represents a single assessment question.
//
// CorrectOptions carries the answer key for option-based types
// (multiple_choice, true_false); CorrectText carries the canonical string for
// short_answer. Essays have neither.
type Question struct {
	ID             uuid.UUID       `json:"id"`
	AssessmentID   uuid.UUID       `json:"assessment_id"`
	QuestionText   string          `json:"question_text"`
	QuestionType   QuestionType    `json:"question_type"`
	Options        json.RawMessage `json:"options,omitempty"`
	CorrectOptions []string        `json:"correct_options,omitempty"`
	CorrectText    string          `json:"correct_text,omitempty"`
	Marks          int             `json:"marks"`
	OrderNum       int             `json:"order_num"`
}

// QuestionForStudent is a question stripped of its answer key.
type QuestionForStudent struct {
	ID           uuid.UUID       `json:"id"`
	QuestionText string          `json:"question_text"`
	QuestionType QuestionType    `json:"question_type"`
	Options      json.RawMessage `json:"options,omitempty"`
	Marks        int             `json:"marks"`
	OrderNum     int             `json:"order_num"`
}
