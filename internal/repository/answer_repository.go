package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gradewise/gradewise-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AnswerRepository handles per-question answer data access. Answers are
// exclusively owned by their attempt and upserted by
// (attempt_id, question_id) — re-saving overwrites, never duplicates.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// UpsertBatch writes a set of answers for one attempt in a single batch.
// Both autosave and submit go through this path so the final answer state
// never depends on an earlier autosave having landed.
func (r *AnswerRepository) UpsertBatch(ctx context.Context, attemptID uuid.UUID, answers []model.AttemptAnswer, now time.Time) error {
	if len(answers) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range answers {
		batch.Queue(
			`INSERT INTO attempt_answers (attempt_id, question_id, answer_text, selected_options, updated_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (attempt_id, question_id) DO UPDATE
			 SET answer_text = EXCLUDED.answer_text,
			     selected_options = EXCLUDED.selected_options,
			     updated_at = EXCLUDED.updated_at`,
			attemptID, answers[i].QuestionID, answers[i].AnswerText, answers[i].SelectedOptions, now,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range answers {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListByAttempt retrieves all persisted answers for an attempt.
func (r *AnswerRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.AttemptAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT attempt_id, question_id, answer_text, selected_options, updated_at
		 FROM attempt_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.AttemptAnswer
	for rows.Next() {
		var a model.AttemptAnswer
		if err := rows.Scan(&a.AttemptID, &a.QuestionID, &a.AnswerText, &a.SelectedOptions, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
