package model

import (
	"time"

	"github.com/google/uuid"
)

// Assessment represents a timed, scored assessment authored by an instructor.
// The attempt engine only reads it; authoring flows live in the instructor app.
type Assessment struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	InstructorID    int        `json:"instructor_id"`
	DurationMinutes int        `json:"duration_minutes"`
	IsPublished     bool       `json:"is_published"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Duration returns the allotted attempt window.
func (a *Assessment) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

// AssessmentPayload is the cached payload sent to students (no answer keys).
type AssessmentPayload struct {
	AssessmentID    uuid.UUID            `json:"assessment_id"`
	Title           string               `json:"title"`
	DurationMinutes int                  `json:"duration_minutes"`
	Questions       []QuestionForStudent `json:"questions"`
}
