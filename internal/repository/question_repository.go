package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/gradewise/gradewise-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByAssessment retrieves all questions for an assessment, ordered by order_num.
func (r *QuestionRepository) ListByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, assessment_id, question_text, question_type, options, correct_options, correct_text, marks, order_num
		 FROM questions WHERE assessment_id = $1
		 ORDER BY order_num`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.AssessmentID, &q.QuestionText, &q.QuestionType,
			&q.Options, &q.CorrectOptions, &q.CorrectText, &q.Marks, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (assessment_id, question_text, question_type, options, correct_options, correct_text, marks, order_num)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		q.AssessmentID, q.QuestionText, q.QuestionType, q.Options, q.CorrectOptions, q.CorrectText, q.Marks, q.OrderNum,
	).Scan(&q.ID)
}
