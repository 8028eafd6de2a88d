package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt states. in_progress is the only
// non-terminal state; the only legal transitions are
// in_progress→submitted and in_progress→expired.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusSubmitted  AttemptStatus = "submitted"
	AttemptStatusExpired    AttemptStatus = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptStatusSubmitted || s == AttemptStatusExpired
}

// Attempt is one student's single timed pass at one assessment.
// StartTime is set once at creation and never mutated. Score fields stay
// nil until submission.
type Attempt struct {
	ID               uuid.UUID     `json:"id"`
	AssessmentID     uuid.UUID     `json:"assessment_id"`
	StudentID        int           `json:"student_id"`
	StartTime        time.Time     `json:"start_time"`
	Status           AttemptStatus `json:"status"`
	CurrentQuestion  int           `json:"current_question"`
	LastSaved        *time.Time    `json:"last_saved,omitempty"`
	SubmittedAt      *time.Time    `json:"submitted_at,omitempty"`
	TimeTakenSeconds *int          `json:"time_taken_seconds,omitempty"`
	CorrectAnswers   *int          `json:"correct_answers,omitempty"`
	TotalQuestions   *int          `json:"total_questions,omitempty"`
	PendingQuestions *int          `json:"pending_questions,omitempty"`
	Grade            *float64      `json:"grade,omitempty"`
	Percentage       *float64      `json:"percentage,omitempty"`
}

// AnswerInput is a single answer as sent by the client during autosave
// or submission.
type AnswerInput struct {
	QuestionID      uuid.UUID `json:"question_id" binding:"required"`
	AnswerText      string    `json:"answer_text"`
	SelectedOptions []string  `json:"selected_options"`
}

// SaveProgressRequest is the autosave payload.
type SaveProgressRequest struct {
	Answers         []AnswerInput `json:"answers" binding:"dive"`
	CurrentQuestion int           `json:"current_question" binding:"min=0"`
}

// SubmitRequest carries the final answer set. Submission persists these
// itself so the final state never depends on an earlier autosave landing.
type SubmitRequest struct {
	Answers []AnswerInput `json:"answers" binding:"dive"`
}
