package scoring

import (
	"testing"

	"github.com/google/uuid"
	"github.com/gradewise/gradewise-backend/internal/model"
)

func mcQuestion(id uuid.UUID, correct ...string) model.Question {
	return model.Question{
		ID:             id,
		QuestionType:   model.QuestionTypeMultipleChoice,
		CorrectOptions: correct,
		Marks:          1,
	}
}

func selected(qid uuid.UUID, options ...string) model.AttemptAnswer {
	return model.AttemptAnswer{QuestionID: qid, SelectedOptions: options}
}

func TestScore_MultipleChoice(t *testing.T) {
	q1, q2, q3, q4 := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	questions := []model.Question{
		mcQuestion(q1, "A"),
		mcQuestion(q2, "B"),
		mcQuestion(q3, "C"),
		mcQuestion(q4, "D"),
	}
	answers := []model.AttemptAnswer{
		selected(q1, "A"),
		selected(q2, "B"),
		selected(q3, "X"),
		selected(q4, "D"),
	}

	res := Score(questions, answers)

	if res.CorrectAnswers != 3 {
		t.Errorf("CorrectAnswers = %d, want 3", res.CorrectAnswers)
	}
	if res.TotalQuestions != 4 {
		t.Errorf("TotalQuestions = %d, want 4", res.TotalQuestions)
	}
	if res.Percentage != 75.00 {
		t.Errorf("Percentage = %v, want 75.00", res.Percentage)
	}
	if res.Grade != 3 || res.TotalMarks != 4 {
		t.Errorf("Grade/TotalMarks = %v/%v, want 3/4", res.Grade, res.TotalMarks)
	}
}

func TestScore_MultiSelectExactMatch(t *testing.T) {
	qid := uuid.New()
	q := []model.Question{mcQuestion(qid, "A", "C")}

	tests := []struct {
		name    string
		options []string
		correct int
	}{
		{"exact match any order", []string{"C", "A"}, 1},
		{"missing one is wrong", []string{"A"}, 0},
		{"extra one is wrong", []string{"A", "C", "B"}, 0},
		{"duplicate selections collapse", []string{"A", "A", "C"}, 1},
		{"empty selection is wrong", nil, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := Score(q, []model.AttemptAnswer{selected(qid, tc.options...)})
			if res.CorrectAnswers != tc.correct {
				t.Errorf("CorrectAnswers = %d, want %d", res.CorrectAnswers, tc.correct)
			}
		})
	}
}

func TestScore_TrueFalse(t *testing.T) {
	qid := uuid.New()
	questions := []model.Question{{
		ID:             qid,
		QuestionType:   model.QuestionTypeTrueFalse,
		CorrectOptions: []string{"true"},
		Marks:          2,
	}}

	res := Score(questions, []model.AttemptAnswer{selected(qid, "true")})
	if res.CorrectAnswers != 1 || res.Grade != 2 {
		t.Errorf("got correct=%d grade=%v, want 1/2", res.CorrectAnswers, res.Grade)
	}

	res = Score(questions, []model.AttemptAnswer{selected(qid, "false")})
	if res.CorrectAnswers != 0 {
		t.Errorf("wrong answer scored as correct")
	}
}

func TestScore_ShortAnswer(t *testing.T) {
	qid := uuid.New()
	questions := []model.Question{{
		ID:           qid,
		QuestionType: model.QuestionTypeShortAnswer,
		CorrectText:  "Mitochondria",
		Marks:        1,
	}}

	tests := []struct {
		name    string
		text    string
		correct int
	}{
		{"exact", "Mitochondria", 1},
		{"case insensitive", "mitoCHONDRIA", 1},
		{"whitespace trimmed", "  mitochondria \n", 1},
		{"wrong", "ribosome", 0},
		{"empty never matches", "", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := Score(questions, []model.AttemptAnswer{{QuestionID: qid, AnswerText: tc.text}})
			if res.CorrectAnswers != tc.correct {
				t.Errorf("CorrectAnswers = %d, want %d", res.CorrectAnswers, tc.correct)
			}
		})
	}
}

func TestScore_UnansweredCountsAgainstStudent(t *testing.T) {
	q1, q2 := uuid.New(), uuid.New()
	questions := []model.Question{mcQuestion(q1, "A"), mcQuestion(q2, "B")}

	res := Score(questions, []model.AttemptAnswer{selected(q1, "A")})

	if res.CorrectAnswers != 1 || res.TotalQuestions != 2 {
		t.Fatalf("got %d/%d, want 1/2", res.CorrectAnswers, res.TotalQuestions)
	}
	if res.Percentage != 50.00 {
		t.Errorf("Percentage = %v, want 50.00", res.Percentage)
	}
}

func TestScore_EssayExcludedFromDenominator(t *testing.T) {
	mc, essay := uuid.New(), uuid.New()
	questions := []model.Question{
		mcQuestion(mc, "A"),
		{ID: essay, QuestionType: model.QuestionTypeEssay, Marks: 10},
	}
	answers := []model.AttemptAnswer{
		selected(mc, "A"),
		{QuestionID: essay, AnswerText: "long free text"},
	}

	res := Score(questions, answers)

	if res.TotalQuestions != 1 {
		t.Errorf("TotalQuestions = %d, want 1 (essay excluded)", res.TotalQuestions)
	}
	if res.PendingQuestions != 1 {
		t.Errorf("PendingQuestions = %d, want 1", res.PendingQuestions)
	}
	if res.Percentage != 100.00 {
		t.Errorf("Percentage = %v, want 100.00", res.Percentage)
	}
	if res.TotalMarks != 1 {
		t.Errorf("TotalMarks = %d, want 1 (essay marks not counted)", res.TotalMarks)
	}
}

func TestScore_NoGradableQuestions(t *testing.T) {
	res := Score(nil, nil)
	if res.Percentage != 0 || res.TotalQuestions != 0 {
		t.Errorf("empty input: got %+v, want zero result", res)
	}

	essayOnly := []model.Question{{ID: uuid.New(), QuestionType: model.QuestionTypeEssay, Marks: 5}}
	res = Score(essayOnly, nil)
	if res.Percentage != 0 || res.TotalQuestions != 0 || res.PendingQuestions != 1 {
		t.Errorf("essay-only: got %+v, want zero percentage with 1 pending", res)
	}
}

func TestRoundPercentage(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{100.0 / 3, 33.33},
		{200.0 / 3, 66.67},
		{12.125, 12.13}, // exact half rounds up
		{99.994, 99.99},
		{100, 100},
		{0, 0},
	}
	for _, tc := range tests {
		if got := RoundPercentage(tc.in); got != tc.want {
			t.Errorf("RoundPercentage(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
