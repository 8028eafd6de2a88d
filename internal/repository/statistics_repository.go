package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/gradewise/gradewise-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubmittedAttemptSummary is the per-attempt slice of data the statistics
// aggregator works over. Only submitted attempts carry these fields.
type SubmittedAttemptSummary struct {
	Percentage       float64
	TimeTakenSeconds int
}

// StatisticsRepository reads attempt aggregates for an assessment. Pure
// read-side; it never mutates attempt state.
type StatisticsRepository struct {
	pool *pgxpool.Pool
}

// NewStatisticsRepository creates a new StatisticsRepository.
func NewStatisticsRepository(pool *pgxpool.Pool) *StatisticsRepository {
	return &StatisticsRepository{pool: pool}
}

// CountEnrolled returns the number of students enrolled in an assessment.
func (r *StatisticsRepository) CountEnrolled(ctx context.Context, assessmentID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE assessment_id = $1`, assessmentID).Scan(&n)
	return n, err
}

// CountAttempted returns the number of distinct students with at least one
// attempt, and the total attempt count, in one round trip.
func (r *StatisticsRepository) CountAttempted(ctx context.Context, assessmentID uuid.UUID) (students, attempts int, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT student_id), COUNT(*) FROM attempts WHERE assessment_id = $1`,
		assessmentID).Scan(&students, &attempts)
	return
}

// ListSubmitted returns the score/time summaries of all submitted attempts.
// In-progress and expired attempts are excluded by definition — a stored
// in_progress status is not trusted as liveness anyway (expiry is lazy).
func (r *StatisticsRepository) ListSubmitted(ctx context.Context, assessmentID uuid.UUID) ([]SubmittedAttemptSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT percentage, time_taken_seconds FROM attempts
		 WHERE assessment_id = $1 AND status = $2`,
		assessmentID, model.AttemptStatusSubmitted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []SubmittedAttemptSummary
	for rows.Next() {
		var s SubmittedAttemptSummary
		if err := rows.Scan(&s.Percentage, &s.TimeTakenSeconds); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
