package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptAnswer is a student's answer to one question within one attempt.
// Upserted by (attempt_id, question_id) — re-saving overwrites, never
// duplicates. Owned by its attempt and removed with it.
type AttemptAnswer struct {
	AttemptID       uuid.UUID `json:"attempt_id"`
	QuestionID      uuid.UUID `json:"question_id"`
	AnswerText      string    `json:"answer_text"`
	SelectedOptions []string  `json:"selected_options"`
	UpdatedAt       time.Time `json:"updated_at"`
}
