package model

import (
	"time"

	"github.com/google/uuid"
)

// Enrollment authorizes a student to attempt an assessment. Managed by
// external enrollment tooling; the attempt engine only checks existence.
type Enrollment struct {
	AssessmentID uuid.UUID `json:"assessment_id"`
	StudentID    int       `json:"student_id"`
	CreatedAt    time.Time `json:"created_at"`
}
