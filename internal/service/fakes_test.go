package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gradewise/gradewise-backend/internal/model"
	"github.com/jackc/pgx/v5"
)

// fakeAttemptStore reproduces the attempt table's semantics in memory,
// including the partial unique guarantee on (assessment, student,
// in_progress) and the guarded single-row updates.
type fakeAttemptStore struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*model.Attempt
	// failCreates makes the next N Create calls report the unique-index
	// conflict even with no in_progress row present, simulating a race
	// winner that vacated the slot before the loser could read it.
	failCreates int
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{attempts: make(map[uuid.UUID]*model.Attempt)}
}

func (f *fakeAttemptStore) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAttemptStore) GetActive(_ context.Context, assessmentID uuid.UUID, studentID int) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attempts {
		if a.AssessmentID == assessmentID && a.StudentID == studentID && a.Status == model.AttemptStatusInProgress {
			cp := *a
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAttemptStore) Create(_ context.Context, a *model.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreates > 0 {
		f.failCreates--
		return pgx.ErrNoRows
	}
	for _, existing := range f.attempts {
		if existing.AssessmentID == a.AssessmentID && existing.StudentID == a.StudentID &&
			existing.Status == model.AttemptStatusInProgress {
			// ON CONFLICT DO NOTHING returns no row.
			return pgx.ErrNoRows
		}
	}
	a.ID = uuid.New()
	a.Status = model.AttemptStatusInProgress
	cp := *a
	f.attempts[a.ID] = &cp
	return nil
}

func (f *fakeAttemptStore) MarkExpired(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok || a.Status != model.AttemptStatusInProgress {
		return false, nil
	}
	a.Status = model.AttemptStatusExpired
	return true, nil
}

func (f *fakeAttemptStore) TouchProgress(_ context.Context, id uuid.UUID, currentQuestion int, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok || a.Status != model.AttemptStatusInProgress {
		return false, nil
	}
	a.CurrentQuestion = currentQuestion
	saved := now
	a.LastSaved = &saved
	return true, nil
}

func (f *fakeAttemptStore) FinalizeSubmission(_ context.Context, id uuid.UUID, submittedAt time.Time,
	timeTakenSeconds, correctAnswers, totalQuestions, pendingQuestions int, grade, percentage float64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok || a.Status != model.AttemptStatusInProgress {
		return false, nil
	}
	a.Status = model.AttemptStatusSubmitted
	at := submittedAt
	a.SubmittedAt = &at
	a.TimeTakenSeconds = &timeTakenSeconds
	a.CorrectAnswers = &correctAnswers
	a.TotalQuestions = &totalQuestions
	a.PendingQuestions = &pendingQuestions
	a.Grade = &grade
	a.Percentage = &percentage
	return true, nil
}

func (f *fakeAttemptStore) ListByStudent(_ context.Context, studentID int) ([]model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Attempt
	for _, a := range f.attempts {
		if a.StudentID == studentID {
			out = append(out, *a)
		}
	}
	return out, nil
}

type fakeAnswerStore struct {
	mu      sync.Mutex
	answers map[uuid.UUID]map[uuid.UUID]model.AttemptAnswer
	writes  int
}

func newFakeAnswerStore() *fakeAnswerStore {
	return &fakeAnswerStore{answers: make(map[uuid.UUID]map[uuid.UUID]model.AttemptAnswer)}
}

func (f *fakeAnswerStore) UpsertBatch(_ context.Context, attemptID uuid.UUID, answers []model.AttemptAnswer, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	byQuestion, ok := f.answers[attemptID]
	if !ok {
		byQuestion = make(map[uuid.UUID]model.AttemptAnswer)
		f.answers[attemptID] = byQuestion
	}
	for _, a := range answers {
		a.AttemptID = attemptID
		a.UpdatedAt = now
		byQuestion[a.QuestionID] = a
	}
	return nil
}

func (f *fakeAnswerStore) ListByAttempt(_ context.Context, attemptID uuid.UUID) ([]model.AttemptAnswer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AttemptAnswer
	for _, a := range f.answers[attemptID] {
		out = append(out, a)
	}
	return out, nil
}

type fakeQuestionStore struct {
	questions []model.Question
}

func (f *fakeQuestionStore) ListByAssessment(_ context.Context, assessmentID uuid.UUID) ([]model.Question, error) {
	var out []model.Question
	for _, q := range f.questions {
		if q.AssessmentID == assessmentID {
			out = append(out, q)
		}
	}
	return out, nil
}

type fakeAssessmentStore struct {
	assessments map[uuid.UUID]*model.Assessment
}

func newFakeAssessmentStore(assessments ...*model.Assessment) *fakeAssessmentStore {
	s := &fakeAssessmentStore{assessments: make(map[uuid.UUID]*model.Assessment)}
	for _, a := range assessments {
		s.assessments[a.ID] = a
	}
	return s
}

func (f *fakeAssessmentStore) GetByID(_ context.Context, id uuid.UUID) (*model.Assessment, error) {
	a, ok := f.assessments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

type fakeEnrollmentStore struct {
	enrolled map[string]bool
}

func newFakeEnrollmentStore() *fakeEnrollmentStore {
	return &fakeEnrollmentStore{enrolled: make(map[string]bool)}
}

func enrollKey(assessmentID uuid.UUID, studentID int) string {
	return fmt.Sprintf("%s/%d", assessmentID, studentID)
}

func (f *fakeEnrollmentStore) enroll(assessmentID uuid.UUID, studentID int) {
	f.enrolled[enrollKey(assessmentID, studentID)] = true
}

func (f *fakeEnrollmentStore) IsEnrolled(_ context.Context, assessmentID uuid.UUID, studentID int) (bool, error) {
	return f.enrolled[enrollKey(assessmentID, studentID)], nil
}

// fakeProgressCache is an in-memory ProgressCache. failing simulates a
// Redis outage; every service path must survive it.
type fakeProgressCache struct {
	mu      sync.Mutex
	starts  map[uuid.UUID]time.Time
	answers map[uuid.UUID]map[string]string
	papers  map[uuid.UUID][]byte
	failing bool
}

func newFakeProgressCache() *fakeProgressCache {
	return &fakeProgressCache{
		starts:  make(map[uuid.UUID]time.Time),
		answers: make(map[uuid.UUID]map[string]string),
	}
}

var errCacheDown = errors.New("cache unavailable")

func (f *fakeProgressCache) SetStartTime(_ context.Context, attemptID uuid.UUID, start time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errCacheDown
	}
	f.starts[attemptID] = start
	return nil
}

func (f *fakeProgressCache) GetStartTime(_ context.Context, attemptID uuid.UUID) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return time.Time{}, false, errCacheDown
	}
	t, ok := f.starts[attemptID]
	return t, ok, nil
}

func (f *fakeProgressCache) SaveAnswers(_ context.Context, attemptID uuid.UUID, answers map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errCacheDown
	}
	m, ok := f.answers[attemptID]
	if !ok {
		m = make(map[string]string)
		f.answers[attemptID] = m
	}
	for k, v := range answers {
		m[k] = v
	}
	return nil
}

func (f *fakeProgressCache) GetAnswers(_ context.Context, attemptID uuid.UUID) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errCacheDown
	}
	return f.answers[attemptID], nil
}

func (f *fakeProgressCache) SetAssessmentPaper(_ context.Context, assessmentID uuid.UUID, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errCacheDown
	}
	if f.papers == nil {
		f.papers = make(map[uuid.UUID][]byte)
	}
	f.papers[assessmentID] = payload
	return nil
}

func (f *fakeProgressCache) GetAssessmentPaper(_ context.Context, assessmentID uuid.UUID) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, false, errCacheDown
	}
	raw, ok := f.papers[assessmentID]
	return raw, ok, nil
}

func (f *fakeProgressCache) Clear(_ context.Context, attemptID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errCacheDown
	}
	delete(f.starts, attemptID)
	delete(f.answers, attemptID)
	return nil
}
