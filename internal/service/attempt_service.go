package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gradewise/gradewise-backend/internal/clock"
	"github.com/gradewise/gradewise-backend/internal/model"
	"github.com/gradewise/gradewise-backend/internal/scoring"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// AttemptStore is the attempt persistence dependency of the lifecycle
// manager. The implementation must guarantee at most one in_progress row
// per (assessment, student) pair at the storage layer.
type AttemptStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	GetActive(ctx context.Context, assessmentID uuid.UUID, studentID int) (*model.Attempt, error)
	Create(ctx context.Context, a *model.Attempt) error
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)
	TouchProgress(ctx context.Context, id uuid.UUID, currentQuestion int, now time.Time) (bool, error)
	FinalizeSubmission(ctx context.Context, id uuid.UUID, submittedAt time.Time,
		timeTakenSeconds, correctAnswers, totalQuestions, pendingQuestions int, grade, percentage float64) (bool, error)
	ListByStudent(ctx context.Context, studentID int) ([]model.Attempt, error)
}

// AnswerStore persists per-question answers, upserted by
// (attempt_id, question_id).
type AnswerStore interface {
	UpsertBatch(ctx context.Context, attemptID uuid.UUID, answers []model.AttemptAnswer, now time.Time) error
	ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.AttemptAnswer, error)
}

// QuestionStore supplies the question list for scoring.
type QuestionStore interface {
	ListByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]model.Question, error)
}

// ProgressCache is the non-authoritative fast path for page reloads and
// clock streams. Every read has a Postgres fallback; cache failures are
// logged, never fatal.
type ProgressCache interface {
	SetStartTime(ctx context.Context, attemptID uuid.UUID, start time.Time) error
	GetStartTime(ctx context.Context, attemptID uuid.UUID) (time.Time, bool, error)
	SaveAnswers(ctx context.Context, attemptID uuid.UUID, answers map[string]string) error
	GetAnswers(ctx context.Context, attemptID uuid.UUID) (map[string]string, error)
	Clear(ctx context.Context, attemptID uuid.UUID) error
}

// AttemptService is the attempt lifecycle state machine: start-vs-resume,
// remaining time, lazy expiry, autosave, submission and scoring handoff.
type AttemptService struct {
	attempts    AttemptStore
	answers     AnswerStore
	questions   QuestionStore
	assessments AssessmentStore
	gate        *EnrollmentGate
	cache       ProgressCache
	clock       clock.Clock
	submitGrace time.Duration
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attempts AttemptStore,
	answers AnswerStore,
	questions QuestionStore,
	assessments AssessmentStore,
	gate *EnrollmentGate,
	cache ProgressCache,
	clk clock.Clock,
	submitGrace time.Duration,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attempts:    attempts,
		answers:     answers,
		questions:   questions,
		assessments: assessments,
		gate:        gate,
		cache:       cache,
		clock:       clk,
		submitGrace: submitGrace,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// BeginResult is the outcome of a begin call: either a fresh attempt or a
// resume of the one already in flight.
type BeginResult struct {
	AttemptID            uuid.UUID `json:"attempt_id"`
	Resumed              bool      `json:"resumed"`
	TimeRemainingSeconds int       `json:"time_remaining_seconds"`
	StartTime            time.Time `json:"start_time"`
}

// BeginAttempt starts a new attempt or resumes the student's in-flight one.
// Repeated calls while the window is open always resume the same attempt.
// A stale in-progress attempt is lazily expired here and a fresh one
// created; the loser of a concurrent begin race resumes the winner's row.
func (s *AttemptService) BeginAttempt(ctx context.Context, assessmentID uuid.UUID, studentID int) (*BeginResult, error) {
	now := s.clock.Now()

	assessment, err := s.gate.CanStart(ctx, assessmentID, studentID, now)
	if err != nil {
		return nil, err
	}

	existing, err := s.attempts.GetActive(ctx, assessmentID, studentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check active attempt: %w", err)
	}

	if existing != nil {
		elapsed := now.Sub(existing.StartTime)
		if elapsed < assessment.Duration() {
			s.cacheStartTime(ctx, existing.ID, existing.StartTime)
			return &BeginResult{
				AttemptID:            existing.ID,
				Resumed:              true,
				TimeRemainingSeconds: remainingSeconds(assessment, elapsed),
				StartTime:            existing.StartTime,
			}, nil
		}

		// Stale attempt: materialize the expiry and fall through to a
		// fresh one. No background sweep is required for correctness.
		if _, err := s.attempts.MarkExpired(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("expire stale attempt: %w", err)
		}
		if err := s.cache.Clear(ctx, existing.ID); err != nil {
			s.log.Warn().Err(err).Str("attempt_id", existing.ID.String()).Msg("Failed to clear progress cache")
		}
	}

	attempt := &model.Attempt{
		AssessmentID: assessmentID,
		StudentID:    studentID,
		StartTime:    now,
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("create attempt: %w", err)
		}

		// Concurrent begin: the unique constraint swallowed our insert.
		// Resume the winner's row instead of failing.
		winner, fetchErr := s.attempts.GetActive(ctx, assessmentID, studentID)
		if fetchErr == nil {
			s.cacheStartTime(ctx, winner.ID, winner.StartTime)
			return &BeginResult{
				AttemptID:            winner.ID,
				Resumed:              true,
				TimeRemainingSeconds: remainingSeconds(assessment, now.Sub(winner.StartTime)),
				StartTime:            winner.StartTime,
			}, nil
		}
		if !errors.Is(fetchErr, pgx.ErrNoRows) {
			return nil, fmt.Errorf("concurrent begin detected, but fetch failed: %w", fetchErr)
		}

		// The winner left in_progress before we could read it (instant
		// submit or expiry), so the slot is free again. Retry the insert
		// once and fall through to the fresh-attempt result.
		if err := s.attempts.Create(ctx, attempt); err != nil {
			return nil, fmt.Errorf("create attempt after vacated race: %w", err)
		}
	}

	s.cacheStartTime(ctx, attempt.ID, now)
	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("assessment_id", assessmentID.String()).
		Int("student_id", studentID).
		Msg("Attempt started")

	return &BeginResult{
		AttemptID:            attempt.ID,
		Resumed:              false,
		TimeRemainingSeconds: int(assessment.Duration().Seconds()),
		StartTime:            now,
	}, nil
}

// SaveProgress idempotently persists partial answers and the last-viewed
// position. It never touches status, start_time or score — callable at
// arbitrary frequency without risk to attempt correctness.
func (s *AttemptService) SaveProgress(ctx context.Context, attemptID uuid.UUID, studentID int, inputs []model.AnswerInput, currentQuestion int) error {
	now := s.clock.Now()

	attempt, err := s.loadOwned(ctx, attemptID, studentID)
	if err != nil {
		return err
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return ErrAttemptNotActive
	}

	// The status guard inside the update refuses the write if a submit or
	// expiry landed between the read above and here.
	touched, err := s.attempts.TouchProgress(ctx, attemptID, currentQuestion, now)
	if err != nil {
		return fmt.Errorf("touch progress: %w", err)
	}
	if !touched {
		return ErrAttemptNotActive
	}

	if err := s.answers.UpsertBatch(ctx, attemptID, toAnswers(attemptID, inputs), now); err != nil {
		return fmt.Errorf("upsert answers: %w", err)
	}

	if err := s.cache.SaveAnswers(ctx, attemptID, encodeAnswers(inputs)); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to cache autosaved answers")
	}
	return nil
}

// SubmitResult is the final outcome of an attempt.
type SubmitResult struct {
	AttemptID        uuid.UUID `json:"attempt_id"`
	SubmittedAt      time.Time `json:"submitted_at"`
	TimeTakenSeconds int       `json:"time_taken_seconds"`
	CorrectAnswers   int       `json:"correct_answers"`
	TotalQuestions   int       `json:"total_questions"`
	PendingQuestions int       `json:"pending_questions"`
	Percentage       float64   `json:"percentage"`
	Grade            float64   `json:"grade"`
}

// Submit finalizes an attempt: persists the final answer set, scores it and
// transitions in_progress→submitted. Submitting an already-submitted
// attempt returns the stored result unchanged, so network retries never
// double-score.
func (s *AttemptService) Submit(ctx context.Context, attemptID uuid.UUID, studentID int, inputs []model.AnswerInput) (*SubmitResult, error) {
	now := s.clock.Now()

	attempt, err := s.loadOwned(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}

	switch attempt.Status {
	case model.AttemptStatusSubmitted:
		return storedResult(attempt), nil
	case model.AttemptStatusExpired:
		return nil, ErrAttemptExpired
	}

	assessment, err := s.assessments.GetByID(ctx, attempt.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	// Lazy expiry on touch. The grace absorbs client latency right at the
	// window boundary; beyond it the submission is rejected, not silently
	// accepted.
	elapsed := now.Sub(attempt.StartTime)
	if elapsed > assessment.Duration()+s.submitGrace {
		if _, err := s.attempts.MarkExpired(ctx, attemptID); err != nil {
			return nil, fmt.Errorf("expire attempt: %w", err)
		}
		if err := s.cache.Clear(ctx, attemptID); err != nil {
			s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to clear progress cache")
		}
		return nil, ErrAttemptExpired
	}

	// Persist the final answer set through the same upsert path as
	// autosave, so the graded state never depends on a prior autosave
	// having landed.
	if err := s.answers.UpsertBatch(ctx, attemptID, toAnswers(attemptID, inputs), now); err != nil {
		return nil, fmt.Errorf("persist final answers: %w", err)
	}

	persisted, err := s.answers.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("load persisted answers: %w", err)
	}
	questions, err := s.questions.ListByAssessment(ctx, attempt.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	score := scoring.Score(questions, persisted)
	timeTaken := clampSeconds(elapsed, assessment.Duration())

	finalized, err := s.attempts.FinalizeSubmission(ctx, attemptID, now,
		timeTaken, score.CorrectAnswers, score.TotalQuestions, score.PendingQuestions,
		score.Grade, score.Percentage)
	if err != nil {
		return nil, fmt.Errorf("finalize submission: %w", err)
	}
	if !finalized {
		// Lost a race: either a concurrent submit already landed (return
		// its stored result) or the attempt expired under us.
		current, reloadErr := s.attempts.GetByID(ctx, attemptID)
		if reloadErr != nil {
			return nil, fmt.Errorf("reload after failed finalize: %w", reloadErr)
		}
		if current.Status == model.AttemptStatusSubmitted {
			return storedResult(current), nil
		}
		return nil, ErrAttemptExpired
	}

	if err := s.cache.Clear(ctx, attemptID); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to clear progress cache")
	}

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Int("correct", score.CorrectAnswers).
		Int("total", score.TotalQuestions).
		Float64("percentage", score.Percentage).
		Msg("Attempt submitted")

	return &SubmitResult{
		AttemptID:        attemptID,
		SubmittedAt:      now,
		TimeTakenSeconds: timeTaken,
		CorrectAnswers:   score.CorrectAnswers,
		TotalQuestions:   score.TotalQuestions,
		PendingQuestions: score.PendingQuestions,
		Percentage:       score.Percentage,
		Grade:            score.Grade,
	}, nil
}

// AttemptState is what a reloading client needs to continue an attempt:
// autosaved answers keyed by question id and the remaining seconds.
type AttemptState struct {
	AttemptID        uuid.UUID           `json:"attempt_id"`
	Status           model.AttemptStatus `json:"status"`
	CurrentQuestion  int                 `json:"current_question"`
	RemainingSeconds int                 `json:"remaining_seconds"`
	Answers          map[string]string   `json:"answers"`
}

// GetState restores the attempt state for a reloading client. The start
// time comes from the cache when warm, with a Postgres fallback that
// self-heals the cache.
func (s *AttemptService) GetState(ctx context.Context, attemptID uuid.UUID, studentID int) (*AttemptState, error) {
	now := s.clock.Now()

	attempt, err := s.loadOwned(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}

	state := &AttemptState{
		AttemptID:       attempt.ID,
		Status:          attempt.Status,
		CurrentQuestion: attempt.CurrentQuestion,
		Answers:         map[string]string{},
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return state, nil
	}

	assessment, err := s.assessments.GetByID(ctx, attempt.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	start, ok, err := s.cache.GetStartTime(ctx, attemptID)
	if err != nil || !ok {
		if err != nil {
			s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Progress cache read failed, using database")
		}
		start = attempt.StartTime
		s.cacheStartTime(ctx, attemptID, start)
	}

	state.RemainingSeconds = remainingSeconds(assessment, now.Sub(start))

	// Lazy expiry on touch, same as begin and submit. The guarded update is
	// a no-op if a concurrent submit got there first.
	if state.RemainingSeconds == 0 {
		expired, err := s.attempts.MarkExpired(ctx, attemptID)
		if err != nil {
			return nil, fmt.Errorf("expire attempt: %w", err)
		}
		if expired {
			state.Status = model.AttemptStatusExpired
		} else {
			current, reloadErr := s.attempts.GetByID(ctx, attemptID)
			if reloadErr != nil {
				return nil, fmt.Errorf("reload after expiry race: %w", reloadErr)
			}
			state.Status = current.Status
		}
		if err := s.cache.Clear(ctx, attemptID); err != nil {
			s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to clear progress cache")
		}
		return state, nil
	}

	if cached, err := s.cache.GetAnswers(ctx, attemptID); err == nil && len(cached) > 0 {
		state.Answers = cached
	} else {
		if err != nil {
			s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Cached answers unavailable, using database")
		}
		persisted, dbErr := s.answers.ListByAttempt(ctx, attemptID)
		if dbErr != nil {
			return nil, fmt.Errorf("load answers: %w", dbErr)
		}
		for i := range persisted {
			state.Answers[persisted[i].QuestionID.String()] = encodeAnswer(model.AnswerInput{
				QuestionID:      persisted[i].QuestionID,
				AnswerText:      persisted[i].AnswerText,
				SelectedOptions: persisted[i].SelectedOptions,
			})
		}
	}

	return state, nil
}

// ListByStudent returns the student's attempt history, newest first.
func (s *AttemptService) ListByStudent(ctx context.Context, studentID int) ([]model.Attempt, error) {
	return s.attempts.ListByStudent(ctx, studentID)
}

// loadOwned fetches an attempt and hides other students' attempts behind
// ErrAttemptNotFound.
func (s *AttemptService) loadOwned(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.Attempt, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.StudentID != studentID {
		return nil, ErrAttemptNotFound
	}
	return attempt, nil
}

func (s *AttemptService) cacheStartTime(ctx context.Context, attemptID uuid.UUID, start time.Time) {
	if err := s.cache.SetStartTime(ctx, attemptID, start); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to cache start time")
	}
}

// remainingSeconds clamps remaining time into [0, duration].
func remainingSeconds(a *model.Assessment, elapsed time.Duration) int {
	remaining := a.Duration() - elapsed
	if remaining < 0 {
		remaining = 0
	}
	if remaining > a.Duration() {
		remaining = a.Duration()
	}
	return int(remaining.Seconds())
}

// clampSeconds bounds time_taken into [0, duration]. Clock skew between the
// app clock and a persisted start_time must never produce a negative or
// over-window value.
func clampSeconds(elapsed, duration time.Duration) int {
	if elapsed < 0 {
		return 0
	}
	if elapsed > duration {
		return int(duration.Seconds())
	}
	return int(elapsed.Seconds())
}

func storedResult(a *model.Attempt) *SubmitResult {
	res := &SubmitResult{AttemptID: a.ID}
	if a.SubmittedAt != nil {
		res.SubmittedAt = *a.SubmittedAt
	}
	if a.TimeTakenSeconds != nil {
		res.TimeTakenSeconds = *a.TimeTakenSeconds
	}
	if a.CorrectAnswers != nil {
		res.CorrectAnswers = *a.CorrectAnswers
	}
	if a.TotalQuestions != nil {
		res.TotalQuestions = *a.TotalQuestions
	}
	if a.PendingQuestions != nil {
		res.PendingQuestions = *a.PendingQuestions
	}
	if a.Percentage != nil {
		res.Percentage = *a.Percentage
	}
	if a.Grade != nil {
		res.Grade = *a.Grade
	}
	return res
}

func toAnswers(attemptID uuid.UUID, inputs []model.AnswerInput) []model.AttemptAnswer {
	answers := make([]model.AttemptAnswer, len(inputs))
	for i, in := range inputs {
		answers[i] = model.AttemptAnswer{
			AttemptID:       attemptID,
			QuestionID:      in.QuestionID,
			AnswerText:      in.AnswerText,
			SelectedOptions: in.SelectedOptions,
		}
	}
	return answers
}

// encodeAnswers builds the cache hash: question id → compact JSON of the
// given answer.
func encodeAnswers(inputs []model.AnswerInput) map[string]string {
	out := make(map[string]string, len(inputs))
	for _, in := range inputs {
		out[in.QuestionID.String()] = encodeAnswer(in)
	}
	return out
}

func encodeAnswer(in model.AnswerInput) string {
	raw, err := json.Marshal(struct {
		AnswerText      string   `json:"answer_text,omitempty"`
		SelectedOptions []string `json:"selected_options,omitempty"`
	}{in.AnswerText, in.SelectedOptions})
	if err != nil {
		return ""
	}
	return string(raw)
}
