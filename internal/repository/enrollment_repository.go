package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnrollmentRepository handles enrollment lookups. Enrollment management
// itself (bulk CSV import etc.) is external; the engine only checks
// membership and counts.
type EnrollmentRepository struct {
	pool *pgxpool.Pool
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(pool *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// IsEnrolled reports whether a student is enrolled in an assessment.
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, assessmentID uuid.UUID, studentID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM enrollments WHERE assessment_id = $1 AND student_id = $2)`,
		assessmentID, studentID).Scan(&exists)
	return exists, err
}

// Create enrolls a student. Used by seed tooling.
func (r *EnrollmentRepository) Create(ctx context.Context, assessmentID uuid.UUID, studentID int) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO enrollments (assessment_id, student_id)
		 VALUES ($1, $2)
		 ON CONFLICT (assessment_id, student_id) DO NOTHING`,
		assessmentID, studentID)
	return err
}
