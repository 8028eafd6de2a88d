// Package scoring turns a question list and an answer list into a
// deterministic result. It never touches the attempt store, so it can be
// unit-tested without a database.
package scoring

import (
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/gradewise/gradewise-backend/internal/model"
)

// Result is the aggregate outcome of scoring one attempt.
//
// TotalQuestions counts auto-gradable questions only; essays are reported
// separately via PendingQuestions and await manual review. Grade is the
// marks-weighted score over the same denominator.
type Result struct {
	CorrectAnswers   int     `json:"correct_answers"`
	TotalQuestions   int     `json:"total_questions"`
	PendingQuestions int     `json:"pending_questions"`
	Percentage       float64 `json:"percentage"`
	Grade            float64 `json:"grade"`
	TotalMarks       int     `json:"total_marks"`
}

// Score grades every auto-gradable question. A question with no matching
// answer counts as incorrect, never as an error — unanswered questions count
// against the student.
func Score(questions []model.Question, answers []model.AttemptAnswer) Result {
	byQuestion := make(map[uuid.UUID]*model.AttemptAnswer, len(answers))
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}

	var res Result
	for i := range questions {
		q := &questions[i]
		if !q.QuestionType.AutoGradable() {
			res.PendingQuestions++
			continue
		}

		res.TotalQuestions++
		res.TotalMarks += q.Marks

		ans, ok := byQuestion[q.ID]
		if !ok {
			continue
		}
		if correct(q, ans) {
			res.CorrectAnswers++
			res.Grade += float64(q.Marks)
		}
	}

	if res.TotalQuestions > 0 {
		res.Percentage = RoundPercentage(float64(res.CorrectAnswers) / float64(res.TotalQuestions) * 100)
	}
	return res
}

// correct applies type-specific equality.
func correct(q *model.Question, ans *model.AttemptAnswer) bool {
	switch q.QuestionType {
	case model.QuestionTypeMultipleChoice, model.QuestionTypeTrueFalse:
		// The selected set must equal the correct set exactly.
		// Partial credit is not awarded.
		return optionSetsEqual(q.CorrectOptions, ans.SelectedOptions)
	case model.QuestionTypeShortAnswer:
		given := strings.TrimSpace(ans.AnswerText)
		want := strings.TrimSpace(q.CorrectText)
		return given != "" && strings.EqualFold(given, want)
	default:
		return false
	}
}

// optionSetsEqual compares two option id collections as sets.
// Empty selections never match a non-empty key.
func optionSetsEqual(want, got []string) bool {
	if len(want) == 0 || len(got) == 0 {
		return false
	}
	wantSet := make(map[string]struct{}, len(want))
	for _, w := range want {
		wantSet[w] = struct{}{}
	}
	gotSet := make(map[string]struct{}, len(got))
	for _, g := range got {
		gotSet[g] = struct{}{}
	}
	if len(wantSet) != len(gotSet) {
		return false
	}
	for w := range wantSet {
		if _, ok := gotSet[w]; !ok {
			return false
		}
	}
	return true
}

// RoundPercentage rounds half-up to 2 decimal places so results are
// reproducible across runs and in tests.
func RoundPercentage(p float64) float64 {
	return math.Floor(p*100+0.5) / 100
}
