package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gradewise/gradewise-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

const attemptColumns = `id, assessment_id, student_id, start_time, status, current_question,
	last_saved, submitted_at, time_taken_seconds, correct_answers, total_questions,
	pending_questions, grade, percentage`

// AttemptRepository handles attempt data access. It is the single source of
// truth for attempt state; the partial unique index on
// (assessment_id, student_id) WHERE status = 'in_progress' is what serializes
// concurrent begin races.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func scanAttempt(row interface{ Scan(dest ...any) error }) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(
		&a.ID, &a.AssessmentID, &a.StudentID, &a.StartTime, &a.Status, &a.CurrentQuestion,
		&a.LastSaved, &a.SubmittedAt, &a.TimeTakenSeconds, &a.CorrectAnswers,
		&a.TotalQuestions, &a.PendingQuestions, &a.Grade, &a.Percentage,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID retrieves an attempt by its UUID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id))
}

// GetActive retrieves the non-terminal attempt for an (assessment, student)
// pair, if one exists. Returns pgx.ErrNoRows otherwise.
func (r *AttemptRepository) GetActive(ctx context.Context, assessmentID uuid.UUID, studentID int) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE assessment_id = $1 AND student_id = $2 AND status = $3`,
		assessmentID, studentID, model.AttemptStatusInProgress))
}

// Create inserts a new in-progress attempt. On a concurrent begin race the
// partial unique index makes the insert a no-op and Scan returns
// pgx.ErrNoRows; the caller must treat that as a resume of the winner's row.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (assessment_id, student_id, start_time, status, current_question)
		 VALUES ($1, $2, $3, $4, 0)
		 ON CONFLICT (assessment_id, student_id) WHERE status = 'in_progress' DO NOTHING
		 RETURNING id`,
		a.AssessmentID, a.StudentID, a.StartTime, model.AttemptStatusInProgress,
	).Scan(&a.ID)
}

// MarkExpired flips an in-progress attempt to expired. The status predicate
// makes the transition a no-op if a concurrent submit got there first.
// Returns whether a row was updated.
func (r *AttemptRepository) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts SET status = $1 WHERE id = $2 AND status = $3`,
		model.AttemptStatusExpired, id, model.AttemptStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// TouchProgress records an autosave: last_saved and current_question only.
// The status guard refuses writes to submitted/expired attempts in the same
// statement, so a late autosave can never corrupt a graded attempt.
func (r *AttemptRepository) TouchProgress(ctx context.Context, id uuid.UUID, currentQuestion int, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts SET current_question = $1, last_saved = $2
		 WHERE id = $3 AND status = $4`,
		currentQuestion, now, id, model.AttemptStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// FinalizeSubmission atomically moves an in-progress attempt to submitted and
// writes the score in a single guarded statement. Returns false when the
// attempt was no longer in progress (concurrent submit or expiry won).
func (r *AttemptRepository) FinalizeSubmission(
	ctx context.Context,
	id uuid.UUID,
	submittedAt time.Time,
	timeTakenSeconds, correctAnswers, totalQuestions, pendingQuestions int,
	grade, percentage float64,
) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, submitted_at = $2, time_taken_seconds = $3,
		     correct_answers = $4, total_questions = $5, pending_questions = $6,
		     grade = $7, percentage = $8
		 WHERE id = $9 AND status = $10`,
		model.AttemptStatusSubmitted, submittedAt, timeTakenSeconds,
		correctAnswers, totalQuestions, pendingQuestions, grade, percentage,
		id, model.AttemptStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListByStudent retrieves all attempts for a student, newest first.
func (r *AttemptRepository) ListByStudent(ctx context.Context, studentID int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE student_id = $1 ORDER BY start_time DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

// AttemptResult combines student data with their attempt details for
// instructor review.
type AttemptResult struct {
	AttemptID        uuid.UUID           `json:"attempt_id"`
	StudentID        int                 `json:"student_id"`
	StudentName      string              `json:"student_name"`
	Status           model.AttemptStatus `json:"status"`
	StartTime        time.Time           `json:"start_time"`
	SubmittedAt      *time.Time          `json:"submitted_at,omitempty"`
	TimeTakenSeconds *int                `json:"time_taken_seconds,omitempty"`
	Percentage       *float64            `json:"percentage,omitempty"`
}

// ListByAssessment retrieves paginated attempt results for an assessment.
func (r *AttemptRepository) ListByAssessment(ctx context.Context, assessmentID uuid.UUID, page, perPage int) ([]AttemptResult, int64, error) {
	offset := (page - 1) * perPage

	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE assessment_id = $1`, assessmentID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.student_id, u.name, a.status, a.start_time,
		        a.submitted_at, a.time_taken_seconds, a.percentage
		 FROM attempts a
		 JOIN users u ON a.student_id = u.id
		 WHERE a.assessment_id = $1
		 ORDER BY u.name ASC, a.start_time DESC
		 LIMIT $2 OFFSET $3`,
		assessmentID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []AttemptResult
	for rows.Next() {
		var res AttemptResult
		if err := rows.Scan(
			&res.AttemptID, &res.StudentID, &res.StudentName, &res.Status, &res.StartTime,
			&res.SubmittedAt, &res.TimeTakenSeconds, &res.Percentage,
		); err != nil {
			return nil, 0, err
		}
		results = append(results, res)
	}
	return results, total, rows.Err()
}

// ExpireStale materializes every in-progress attempt whose window has fully
// elapsed (plus grace) as expired. Used by the sweep worker; lazy on-touch
// expiry remains the correctness mechanism.
func (r *AttemptRepository) ExpireStale(ctx context.Context, now time.Time, grace time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts a
		 SET status = $1
		 FROM assessments s
		 WHERE a.assessment_id = s.id
		   AND a.status = $2
		   AND a.start_time + make_interval(mins => s.duration_minutes) + make_interval(secs => $3) < $4`,
		model.AttemptStatusExpired, model.AttemptStatusInProgress, grace.Seconds(), now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
