package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/gradewise/gradewise-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AssessmentRepository handles assessment metadata access. The attempt
// engine only reads duration, publication and window fields; authoring
// flows are external.
type AssessmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(pool *pgxpool.Pool) *AssessmentRepository {
	return &AssessmentRepository{pool: pool}
}

// GetByID retrieves an assessment by its UUID.
func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	a := &model.Assessment{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, instructor_id, duration_minutes, is_published, start_date, end_date, created_at, updated_at
		 FROM assessments WHERE id = $1`, id,
	).Scan(&a.ID, &a.Title, &a.InstructorID, &a.DurationMinutes, &a.IsPublished,
		&a.StartDate, &a.EndDate, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts an assessment. Used by seed tooling.
func (r *AssessmentRepository) Create(ctx context.Context, a *model.Assessment) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO assessments (title, instructor_id, duration_minutes, is_published, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		a.Title, a.InstructorID, a.DurationMinutes, a.IsPublished, a.StartDate, a.EndDate,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}
