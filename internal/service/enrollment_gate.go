package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gradewise/gradewise-backend/internal/model"
	"github.com/jackc/pgx/v5"
)

// EnrollmentStore is the enrollment-lookup dependency of the gate.
type EnrollmentStore interface {
	IsEnrolled(ctx context.Context, assessmentID uuid.UUID, studentID int) (bool, error)
}

// AssessmentStore supplies assessment metadata (duration, publication, window).
type AssessmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error)
}

// EnrollmentGate decides whether a student may start an attempt right now.
// Pure read — it never writes.
type EnrollmentGate struct {
	enrollments EnrollmentStore
	assessments AssessmentStore
}

// NewEnrollmentGate creates a new EnrollmentGate.
func NewEnrollmentGate(enrollments EnrollmentStore, assessments AssessmentStore) *EnrollmentGate {
	return &EnrollmentGate{enrollments: enrollments, assessments: assessments}
}

// CanStart runs the gate checks in order, short-circuiting on the first
// failure: enrollment exists, assessment published, now within the
// start/end window. On success it returns the assessment so callers do not
// re-fetch it for the duration.
func (g *EnrollmentGate) CanStart(ctx context.Context, assessmentID uuid.UUID, studentID int, now time.Time) (*model.Assessment, error) {
	enrolled, err := g.enrollments.IsEnrolled(ctx, assessmentID, studentID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return nil, ErrNotEnrolled
	}

	assessment, err := g.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	if !assessment.IsPublished {
		return nil, ErrNotPublished
	}
	if assessment.StartDate != nil && now.Before(*assessment.StartDate) {
		return nil, ErrNotYetOpen
	}
	if assessment.EndDate != nil && now.After(*assessment.EndDate) {
		return nil, ErrWindowClosed
	}

	return assessment, nil
}
