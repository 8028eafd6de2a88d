package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gradewise/gradewise-backend/internal/clock"
	"github.com/gradewise/gradewise-backend/internal/model"
	"github.com/rs/zerolog"
)

type attemptFixture struct {
	svc         *AttemptService
	attempts    *fakeAttemptStore
	answers     *fakeAnswerStore
	cache       *fakeProgressCache
	clk         *clock.Mock
	assessment  *model.Assessment
	enrollments *fakeEnrollmentStore
	questions   *fakeQuestionStore
}

var fixtureStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newAttemptFixture(t *testing.T) *attemptFixture {
	t.Helper()

	assessment := &model.Assessment{
		ID:              uuid.New(),
		Title:           "Midterm",
		DurationMinutes: 60,
		IsPublished:     true,
	}

	qMC := model.Question{
		ID: uuid.New(), AssessmentID: assessment.ID,
		QuestionType: model.QuestionTypeMultipleChoice,
		CorrectOptions: []string{"a"}, Marks: 2,
	}
	qTF := model.Question{
		ID: uuid.New(), AssessmentID: assessment.ID,
		QuestionType: model.QuestionTypeTrueFalse,
		CorrectOptions: []string{"true"}, Marks: 1,
	}

	f := &attemptFixture{
		attempts:    newFakeAttemptStore(),
		answers:     newFakeAnswerStore(),
		cache:       newFakeProgressCache(),
		clk:         clock.NewMock(fixtureStart),
		assessment:  assessment,
		enrollments: newFakeEnrollmentStore(),
		questions:   &fakeQuestionStore{questions: []model.Question{qMC, qTF}},
	}
	f.enrollments.enroll(assessment.ID, 1)

	assessments := newFakeAssessmentStore(assessment)
	gate := NewEnrollmentGate(f.enrollments, assessments)
	f.svc = NewAttemptService(
		f.attempts, f.answers, f.questions, assessments, gate,
		f.cache, f.clk, 30*time.Second, zerolog.Nop(),
	)
	return f
}

func (f *attemptFixture) correctInputs() []model.AnswerInput {
	return []model.AnswerInput{
		{QuestionID: f.questions.questions[0].ID, SelectedOptions: []string{"a"}},
		{QuestionID: f.questions.questions[1].ID, SelectedOptions: []string{"true"}},
	}
}

func TestBeginAttemptIsIdempotent(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	first, err := f.svc.BeginAttempt(ctx, f.assessment.ID, 1)
	if err != nil {
		t.Fatalf("first begin: %v", err)
	}
	if first.Resumed {
		t.Error("first begin reported resumed")
	}
	if first.TimeRemainingSeconds != 3600 {
		t.Errorf("remaining = %d, want 3600", first.TimeRemainingSeconds)
	}

	f.clk.Advance(10 * time.Minute)
	second, err := f.svc.BeginAttempt(ctx, f.assessment.ID, 1)
	if err != nil {
		t.Fatalf("second begin: %v", err)
	}
	if second.AttemptID != first.AttemptID {
		t.Errorf("second begin created a new attempt: %s != %s", second.AttemptID, first.AttemptID)
	}
	if !second.Resumed {
		t.Error("second begin not reported as resume")
	}
	if second.TimeRemainingSeconds != 3000 {
		t.Errorf("remaining after 10m = %d, want 3000", second.TimeRemainingSeconds)
	}
	if !second.StartTime.Equal(first.StartTime) {
		t.Errorf("resume changed start time: %v != %v", second.StartTime, first.StartTime)
	}
}

func TestBeginAttemptAfterWindowExpiresOldAndStartsFresh(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	first, err := f.svc.BeginAttempt(ctx, f.assessment.ID, 1)
	if err != nil {
		t.Fatalf("first begin: %v", err)
	}

	f.clk.Advance(61 * time.Minute)
	second, err := f.svc.BeginAttempt(ctx, f.assessment.ID, 1)
	if err != nil {
		t.Fatalf("second begin: %v", err)
	}
	if second.AttemptID == first.AttemptID {
		t.Error("begin past the window resumed the stale attempt")
	}
	if second.Resumed {
		t.Error("fresh attempt reported as resume")
	}
	if second.TimeRemainingSeconds != 3600 {
		t.Errorf("remaining = %d, want full window", second.TimeRemainingSeconds)
	}

	stale, err := f.attempts.GetByID(ctx, first.AttemptID)
	if err != nil {
		t.Fatalf("get stale: %v", err)
	}
	if stale.Status != model.AttemptStatusExpired {
		t.Errorf("stale attempt status = %s, want expired", stale.Status)
	}
}

func TestBeginAttemptGateDenials(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func()
		student int
		wantErr error
	}{
		{
			name:    "not enrolled",
			mutate:  func() {},
			student: 42,
			wantErr: ErrNotEnrolled,
		},
		{
			name: "not published",
			mutate: func() {
				f.assessment.IsPublished = false
			},
			student: 1,
			wantErr: ErrNotPublished,
		},
		{
			name: "window not open yet",
			mutate: func() {
				f.assessment.IsPublished = true
				opens := fixtureStart.Add(time.Hour)
				f.assessment.StartDate = &opens
			},
			student: 1,
			wantErr: ErrNotYetOpen,
		},
		{
			name: "window closed",
			mutate: func() {
				f.assessment.StartDate = nil
				closed := fixtureStart.Add(-time.Hour)
				f.assessment.EndDate = &closed
			},
			student: 1,
			wantErr: ErrWindowClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mutate()
			_, err := f.svc.BeginAttempt(ctx, f.assessment.ID, tt.student)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("begin error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBeginAttemptConcurrentRaceResumesWinner(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	// Simulate the loser of a begin race: a winner row appears between the
	// GetActive miss and the insert. The fake store enforces the unique
	// constraint the same way the partial index does.
	winner := &model.Attempt{AssessmentID: f.assessment.ID, StudentID: 1, StartTime: f.clk.Now()}
	if err := f.attempts.Create(ctx, winner); err != nil {
		t.Fatalf("seed winner: %v", err)
	}

	res, err := f.svc.BeginAttempt(ctx, f.assessment.ID, 1)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if res.AttemptID != winner.ID {
		t.Errorf("race loser got %s, want winner %s", res.AttemptID, winner.ID)
	}
	if !res.Resumed {
		t.Error("race loser not reported as resume")
	}
}

func TestBeginAttemptRetriesWhenRaceWinnerVacates(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	// The insert conflicts but the winner's row has already left
	// in_progress (instant submit or expiry) by the time we fetch it. The
	// slot is free again; begin must create instead of failing.
	f.attempts.failCreates = 1

	res, err := f.svc.BeginAttempt(ctx, f.assessment.ID, 1)
	if err != nil {
		t.Fatalf("begin after vacated race: %v", err)
	}
	if res.Resumed {
		t.Error("fresh attempt reported as resume")
	}
	if res.TimeRemainingSeconds != 3600 {
		t.Errorf("remaining = %d, want 3600", res.TimeRemainingSeconds)
	}
	if _, err := f.attempts.GetByID(ctx, res.AttemptID); err != nil {
		t.Errorf("created attempt not stored: %v", err)
	}
}

func TestBeginAttemptSurvivesCacheOutage(t *testing.T) {
	f := newAttemptFixture(t)
	f.cache.failing = true

	res, err := f.svc.BeginAttempt(context.Background(), f.assessment.ID, 1)
	if err != nil {
		t.Fatalf("begin with cache down: %v", err)
	}
	if res.TimeRemainingSeconds != 3600 {
		t.Errorf("remaining = %d, want 3600", res.TimeRemainingSeconds)
	}
}

func TestSaveProgressUpsertsAndTouches(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	begin, err := f.svc.BeginAttempt(ctx, f.assessment.ID, 1)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	f.clk.Advance(5 * time.Minute)
	inputs := []model.AnswerInput{{QuestionID: f.questions.questions[0].ID, SelectedOptions: []string{"b"}}}
	if err := f.svc.SaveProgress(ctx, begin.AttemptID, 1, inputs, 3); err != nil {
		t.Fatalf("save progress: %v", err)
	}

	// Re-save the same question with a different answer: overwrite, no dup.
	inputs[0].SelectedOptions = []string{"a"}
	if err := f.svc.SaveProgress(ctx, begin.AttemptID, 1, inputs, 4); err != nil {
		t.Fatalf("second save: %v", err)
	}

	stored, err := f.answers.ListByAttempt(ctx, begin.AttemptID)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("answer rows = %d, want 1", len(stored))
	}
	if got := stored[0].SelectedOptions[0]; got != "a" {
		t.Errorf("re-save did not overwrite: got %q", got)
	}

	attempt, _ := f.attempts.GetByID(ctx, begin.AttemptID)
	if attempt.CurrentQuestion != 4 {
		t.Errorf("current_question = %d, want 4", attempt.CurrentQuestion)
	}
	if attempt.LastSaved == nil || !attempt.LastSaved.Equal(f.clk.Now()) {
		t.Errorf("last_saved = %v, want %v", attempt.LastSaved, f.clk.Now())
	}
	if attempt.Status != model.AttemptStatusInProgress {
		t.Errorf("autosave changed status to %s", attempt.Status)
	}
	if !attempt.StartTime.Equal(begin.StartTime) {
		t.Error("autosave mutated start_time")
	}
}

func TestSaveProgressOnTerminalAttempt(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	begin, err := f.svc.BeginAttempt(ctx, f.assessment.ID, 1)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := f.svc.Submit(ctx, begin.AttemptID, 1, f.correctInputs()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	writesAfterSubmit := f.answers.writes

	err = f.svc.SaveProgress(ctx, begin.AttemptID, 1, f.correctInputs(), 0)
	if !errors.Is(err, ErrAttemptNotActive) {
		t.Errorf("save on submitted attempt: err = %v, want ErrAttemptNotActive", err)
	}
	if f.answers.writes != writesAfterSubmit {
		t.Error("rejected autosave still wrote answers")
	}
}

func TestSaveProgressOwnershipHidden(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	begin, err := f.svc.BeginAttempt(ctx, f.assessment.ID, 1)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	err = f.svc.SaveProgress(ctx, begin.AttemptID, 99, nil, 0)
	if !errors.Is(err, ErrAttemptNotFound) {
		t.Errorf("foreign attempt err = %v, want ErrAttemptNotFound", err)
	}
}

func TestSubmitScoresAndFinalizes(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	begin, err := f.svc.BeginAttempt(ctx, f.assessment.ID, 1)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	f.clk.Advance(42 * time.Minute)
	res, err := f.svc.Submit(ctx, begin.AttemptID, 1, f.correctInputs())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if res.CorrectAnswers != 2 || res.TotalQuestions != 2 {
		t.Errorf("score = %d/%d, want 2/2", res.CorrectAnswers, res.TotalQuestions)
	}
	if res.Percentage != 100 {
		t.Errorf("percentage = %v, want 100", res.Percentage)
	}
	if res.TimeTakenSeconds != 42*60 {
		t.Errorf("time_taken = %d, want %d", res.TimeTakenSeconds, 42*60)
	}
	if !res.SubmittedAt.Equal(f.clk.Now()) {
		t.Errorf("submitted_at = %v, want %v", res.SubmittedAt, f.clk.Now())
	}

	stored, _ := f.attempts.GetByID(ctx, begin.AttemptID)
	if stored.Status != model.AttemptStatusSubmitted {
		t.Errorf("status = %s, want submitted", stored.Status)
	}
	if _, ok, _ := f.cache.GetStartTime(ctx, begin.AttemptID); ok {
		t.Error("submit left the start time cached")
	}
}

func TestSubmitIsIdempotent(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	begin, err := f.svc.BeginAttempt(ctx, f.assessment.ID, 1)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	f.clk.Advance(10 * time.Minute)
	first, err := f.svc.Submit(ctx, begin.AttemptID, 1, f.correctInputs())
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	// Retry later, with worse answers: everything stays as stored.
	f.clk.Advance(3 * time.Minute)
	second, err := f.svc.Submit(ctx, begin.AttemptID, 1, nil)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if !second.SubmittedAt.Equal(first.SubmittedAt) {
		t.Errorf("retry changed submitted_at: %v != %v", second.SubmittedAt, first.SubmittedAt)
	}
	if second.CorrectAnswers != first.CorrectAnswers || second.Percentage != first.Percentage {
		t.Errorf("retry changed score: %+v != %+v", second, first)
	}
	if second.TimeTakenSeconds != first.TimeTakenSeconds {
		t.Errorf("retry changed time_taken: %d != %d", second.TimeTakenSeconds, first.TimeTakenSeconds)
	}
}

func TestSubmitIsIdempotentWithPendingEssay(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	// An essay sits outside the auto-graded denominator and is reported as
	// pending. The retry must echo the stored pending count, not recompute
	// it away.
	essay := model.Question{
		ID: uuid.New(), AssessmentID: f.assessment.ID,
		QuestionType: model.QuestionTypeEssay, Marks: 5,
	}
	f.questions.questions = append(f.questions.questions, essay)

	begin, err := f.svc.BeginAttempt(ctx, f.assessment.ID, 1)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	f.clk.Advance(20 * time.Minute)
	inputs := append(f.correctInputs(), model.AnswerInput{QuestionID: essay.ID, AnswerText: "long form"})
	first, err := f.svc.Submit(ctx, begin.AttemptID, 1, inputs)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if first.PendingQuestions != 1 {
		t.Fatalf("pending = %d, want 1", first.PendingQuestions)
	}
	if first.TotalQuestions != 2 {
		t.Errorf("total = %d, want 2 auto-gradable", first.TotalQuestions)
	}

	f.clk.Advance(time.Minute)
	second, err := f.svc.Submit(ctx, begin.AttemptID, 1, nil)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if second.PendingQuestions != first.PendingQuestions {
		t.Errorf("retry changed pending: %d != %d", second.PendingQuestions, first.PendingQuestions)
	}
	if *second != *first {
		t.Errorf("retry result differs: %+v != %+v", second, first)
	}

	stored, _ := f.attempts.GetByID(ctx, begin.AttemptID)
	if stored.PendingQuestions == nil || *stored.PendingQuestions != 1 {
		t.Errorf("stored pending_questions = %v, want 1", stored.PendingQuestions)
	}
}

func TestSubmitWithinGraceIsAccepted(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	begin, err := f.svc.BeginAttempt(ctx, f.assessment.ID, 1)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	f.clk.Advance(60*time.Minute + 20*time.Second)
	res, err := f.svc.Submit(ctx, begin.AttemptID, 1, f.correctInputs())
	if err != nil {
		t.Fatalf("submit within grace: %v", err)
	}
	// time_taken is clamped to the window even when grace was used.
	if res.TimeTakenSeconds != 3600 {
		t.Errorf("time_taken = %d, want clamped 3600", res.TimeTakenSeconds)
	}
}

func TestSubmitPastGraceExpires(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	begin, err := f.svc.BeginAttempt(ctx, f.assessment.ID, 1)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	f.clk.Advance(60*time.Minute + 31*time.Second)
	_, err = f.svc.Submit(ctx, begin.AttemptID, 1, f.correctInputs())
	if !errors.Is(err, ErrAttemptExpired) {
		t.Fatalf("late submit err = %v, want ErrAttemptExpired", err)
	}

	stored, _ := f.attempts.GetByID(ctx, begin.AttemptID)
	if stored.Status != model.AttemptStatusExpired {
		t.Errorf("status = %s, want expired", stored.Status)
	}

	// Submitting again keeps failing the same way.
	_, err = f.svc.Submit(ctx, begin.AttemptID, 1, nil)
	if !errors.Is(err, ErrAttemptExpired) {
		t.Errorf("submit on expired err = %v, want ErrAttemptExpired", err)
	}
}

func TestSubmitNotFound(t *testing.T) {
	f := newAttemptFixture(t)

	_, err := f.svc.Submit(context.Background(), uuid.New(), 1, nil)
	if !errors.Is(err, ErrAttemptNotFound) {
		t.Errorf("err = %v, want ErrAttemptNotFound", err)
	}
}

func TestGetStateRestoresProgress(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	begin, err := f.svc.BeginAttempt(ctx, f.assessment.ID, 1)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	inputs := []model.AnswerInput{{QuestionID: f.questions.questions[0].ID, SelectedOptions: []string{"a"}}}
	if err := f.svc.SaveProgress(ctx, begin.AttemptID, 1, inputs, 2); err != nil {
		t.Fatalf("save: %v", err)
	}

	f.clk.Advance(15 * time.Minute)
	state, err := f.svc.GetState(ctx, begin.AttemptID, 1)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Status != model.AttemptStatusInProgress {
		t.Errorf("status = %s, want in_progress", state.Status)
	}
	if state.CurrentQuestion != 2 {
		t.Errorf("current_question = %d, want 2", state.CurrentQuestion)
	}
	if state.RemainingSeconds != 45*60 {
		t.Errorf("remaining = %d, want %d", state.RemainingSeconds, 45*60)
	}
	if _, ok := state.Answers[f.questions.questions[0].ID.String()]; !ok {
		t.Error("saved answer missing from restored state")
	}
}

func TestGetStateFallsBackToDatabaseWhenCacheDown(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	begin, err := f.svc.BeginAttempt(ctx, f.assessment.ID, 1)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	inputs := []model.AnswerInput{{QuestionID: f.questions.questions[1].ID, SelectedOptions: []string{"true"}}}
	if err := f.svc.SaveProgress(ctx, begin.AttemptID, 1, inputs, 1); err != nil {
		t.Fatalf("save: %v", err)
	}

	f.cache.failing = true
	f.clk.Advance(30 * time.Minute)

	state, err := f.svc.GetState(ctx, begin.AttemptID, 1)
	if err != nil {
		t.Fatalf("get state with cache down: %v", err)
	}
	if state.RemainingSeconds != 30*60 {
		t.Errorf("remaining = %d, want %d", state.RemainingSeconds, 30*60)
	}
	if len(state.Answers) != 1 {
		t.Errorf("answers restored = %d, want 1 from database", len(state.Answers))
	}
}

func TestGetStateExpiresStaleAttempt(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	begin, err := f.svc.BeginAttempt(ctx, f.assessment.ID, 1)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	f.clk.Advance(61 * time.Minute)
	state, err := f.svc.GetState(ctx, begin.AttemptID, 1)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Status != model.AttemptStatusExpired {
		t.Errorf("status = %s, want expired", state.Status)
	}
	if state.RemainingSeconds != 0 {
		t.Errorf("remaining = %d, want 0", state.RemainingSeconds)
	}

	stored, _ := f.attempts.GetByID(ctx, begin.AttemptID)
	if stored.Status != model.AttemptStatusExpired {
		t.Errorf("stored status = %s, want expired", stored.Status)
	}
	if _, ok, _ := f.cache.GetStartTime(ctx, begin.AttemptID); ok {
		t.Error("stale attempt left its start time cached")
	}
}

func TestGetStateTerminalAttemptHasNoRemaining(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	begin, err := f.svc.BeginAttempt(ctx, f.assessment.ID, 1)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := f.svc.Submit(ctx, begin.AttemptID, 1, f.correctInputs()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	state, err := f.svc.GetState(ctx, begin.AttemptID, 1)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Status != model.AttemptStatusSubmitted {
		t.Errorf("status = %s, want submitted", state.Status)
	}
	if state.RemainingSeconds != 0 {
		t.Errorf("remaining = %d, want 0", state.RemainingSeconds)
	}
}

func TestRemainingSecondsClamps(t *testing.T) {
	a := &model.Assessment{DurationMinutes: 60}

	tests := []struct {
		name    string
		elapsed time.Duration
		want    int
	}{
		{"at start", 0, 3600},
		{"mid window", 30 * time.Minute, 1800},
		{"at boundary", 60 * time.Minute, 0},
		{"past boundary", 90 * time.Minute, 0},
		{"clock skew before start", -5 * time.Minute, 3600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := remainingSeconds(a, tt.elapsed); got != tt.want {
				t.Errorf("remainingSeconds(%v) = %d, want %d", tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestClampSeconds(t *testing.T) {
	d := 60 * time.Minute

	tests := []struct {
		name    string
		elapsed time.Duration
		want    int
	}{
		{"negative", -time.Minute, 0},
		{"normal", 42 * time.Minute, 2520},
		{"over window", 70 * time.Minute, 3600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clampSeconds(tt.elapsed, d); got != tt.want {
				t.Errorf("clampSeconds(%v) = %d, want %d", tt.elapsed, got, tt.want)
			}
		})
	}
}
