package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-session/internal/model"
)

func singleChoice(marks float64, correct string) model.Question {
	return model.Question{
		ID:            uuid.New(),
		Type:          model.QuestionTypeSingleChoice,
		Marks:         marks,
		Options:       []string{"a", "b", "c", "d"},
		CorrectAnswer: model.AnswerValue{Type: model.QuestionTypeSingleChoice, Choice: correct},
	}
}

func bundleOf(settings model.ExamSettings, questions ...model.Question) *model.ExamBundle {
	return &model.ExamBundle{
		Exam:      model.Exam{ID: uuid.New(), DurationSeconds: 3600, Settings: settings},
		Questions: questions,
	}
}

func sessionWith(answers map[uuid.UUID]model.AnswerValue) *model.Session {
	s := &model.Session{
		ID:      uuid.New(),
		Status:  model.SessionStatusCompleted,
		Answers: make(map[uuid.UUID]model.Answer),
	}
	for qid, v := range answers {
		s.Answers[qid] = model.Answer{QuestionID: qid, Value: v, RecordedAt: time.Now()}
	}
	return s
}

func TestScorerCorrectSingleChoice(t *testing.T) {
	q := singleChoice(4, "b")
	b := bundleOf(model.ExamSettings{Cutoff: 50}, q)
	s := sessionWith(map[uuid.UUID]model.AnswerValue{
		q.ID: {Type: model.QuestionTypeSingleChoice, Choice: "b"},
	})

	res := NewScorer(DefaultScoringPolicy()).Score(b, s)

	if res.ObtainedMarks != 4 || res.Percentage != 100 {
		t.Fatalf("obtained=%v pct=%v, want 4 and 100", res.ObtainedMarks, res.Percentage)
	}
	if res.State != model.ResultStateScored || res.Passed == nil || !*res.Passed {
		t.Errorf("state=%s passed=%v", res.State, res.Passed)
	}
}

func TestScorerNegativeMarkingClampedPerQuestion(t *testing.T) {
	wrong := singleChoice(4, "b")
	right := singleChoice(4, "a")
	settings := model.ExamSettings{EnableNegativeMarking: true, NegativeMarks: 1}
	b := bundleOf(settings, wrong, right)
	s := sessionWith(map[uuid.UUID]model.AnswerValue{
		wrong.ID: {Type: model.QuestionTypeSingleChoice, Choice: "c"},
		right.ID: {Type: model.QuestionTypeSingleChoice, Choice: "a"},
	})

	res := NewScorer(DefaultScoringPolicy()).Score(b, s)
	if res.ObtainedMarks != 4 {
		t.Fatalf("obtained = %v, want 4 (wrong answer clamped at 0, not -1)", res.ObtainedMarks)
	}
	if got := *res.Breakdown[0].MarksAwarded; got != 0 {
		t.Errorf("wrong answer awarded %v, want 0", got)
	}

	unclamped := NewScorer(ScoringPolicy{PartialRounding: RoundingFloor}).Score(b, s)
	if unclamped.ObtainedMarks != 3 {
		t.Errorf("unclamped obtained = %v, want 3", unclamped.ObtainedMarks)
	}
}

func TestScorerQuestionPenaltyOverride(t *testing.T) {
	q := singleChoice(4, "b")
	penalty := 2.0
	q.NegativeMarks = &penalty
	b := bundleOf(model.ExamSettings{EnableNegativeMarking: true, NegativeMarks: 1}, q)
	s := sessionWith(map[uuid.UUID]model.AnswerValue{
		q.ID: {Type: model.QuestionTypeSingleChoice, Choice: "a"},
	})

	res := NewScorer(ScoringPolicy{ClampPerQuestion: true, QuestionFloor: -10}).Score(b, s)
	if res.ObtainedMarks != -2 {
		t.Errorf("obtained = %v, want -2", res.ObtainedMarks)
	}

	b.Exam.Settings.EnableNegativeMarking = false
	res = NewScorer(ScoringPolicy{ClampPerQuestion: true, QuestionFloor: -10}).Score(b, s)
	if res.ObtainedMarks != 0 {
		t.Errorf("obtained with negative marking off = %v, want 0", res.ObtainedMarks)
	}
}

func TestScorerPartialMultiChoice(t *testing.T) {
	q := model.Question{
		ID:             uuid.New(),
		Type:           model.QuestionTypeMultiChoice,
		Marks:          5,
		PartialMarking: true,
		Options:        []string{"a", "b", "c", "d", "e"},
		CorrectAnswer:  model.AnswerValue{Type: model.QuestionTypeMultiChoice, Choices: []string{"a", "b", "c", "d"}},
	}
	settings := model.ExamSettings{EnableNegativeMarking: true, NegativeMarks: 1}
	b := bundleOf(settings, q)

	tests := []struct {
		name    string
		choices []string
		policy  ScoringPolicy
		want    float64
	}{
		{"three right one wrong floors", []string{"a", "b", "c", "e"}, DefaultScoringPolicy(), 2},
		{"three right one wrong exact", []string{"a", "b", "c", "e"}, ScoringPolicy{PartialRounding: RoundingNone, ClampPerQuestion: true}, 2.5},
		{"all correct", []string{"d", "c", "b", "a"}, DefaultScoringPolicy(), 5},
		{"one right one wrong gets penalty clamped", []string{"a", "e"}, DefaultScoringPolicy(), 0},
		{"one right one wrong gets penalty", []string{"a", "e"}, ScoringPolicy{PartialRounding: RoundingFloor}, -1},
		{"partial credit skips penalty", []string{"a", "b"}, ScoringPolicy{PartialRounding: RoundingNone}, 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sessionWith(map[uuid.UUID]model.AnswerValue{
				q.ID: {Type: model.QuestionTypeMultiChoice, Choices: tt.choices},
			})
			res := NewScorer(tt.policy).Score(b, s)
			if res.ObtainedMarks != tt.want {
				t.Fatalf("obtained = %v, want %v", res.ObtainedMarks, tt.want)
			}
		})
	}
}

func TestScorerFlooredPartialCreditSkipsPenalty(t *testing.T) {
	q := model.Question{
		ID:             uuid.New(),
		Type:           model.QuestionTypeMultiChoice,
		Marks:          1,
		PartialMarking: true,
		Options:        []string{"a", "b", "c", "d", "e"},
		CorrectAnswer:  model.AnswerValue{Type: model.QuestionTypeMultiChoice, Choices: []string{"a", "b", "c", "d"}},
	}
	b := bundleOf(model.ExamSettings{EnableNegativeMarking: true, NegativeMarks: 1}, q)
	s := sessionWith(map[uuid.UUID]model.AnswerValue{
		q.ID: {Type: model.QuestionTypeMultiChoice, Choices: []string{"a"}},
	})

	// 1 * 1/4 floors to 0; no clamp, so a penalty would show as -1.
	res := NewScorer(ScoringPolicy{PartialRounding: RoundingFloor}).Score(b, s)
	if res.ObtainedMarks != 0 {
		t.Fatalf("obtained = %v, want 0", res.ObtainedMarks)
	}
	if got := res.Breakdown[0].MarksAwarded; got == nil || *got != 0 {
		t.Errorf("marks awarded = %v, want 0", got)
	}
}

func TestScorerTypeSpecificEquality(t *testing.T) {
	blank := model.Question{
		ID: uuid.New(), Type: model.QuestionTypeFillBlank, Marks: 2, BlanksCount: 2,
		CorrectAnswer: model.AnswerValue{Type: model.QuestionTypeFillBlank, Blanks: []string{"New  York", "paris"}},
	}
	match := model.Question{
		ID: uuid.New(), Type: model.QuestionTypeMatch, Marks: 3,
		CorrectAnswer: model.AnswerValue{Type: model.QuestionTypeMatch, Pairs: map[string]string{"x": "1", "y": "2"}},
	}
	order := model.Question{
		ID: uuid.New(), Type: model.QuestionTypeOrder, Marks: 1,
		CorrectAnswer: model.AnswerValue{Type: model.QuestionTypeOrder, Sequence: []string{"p", "q", "r"}},
	}
	b := bundleOf(model.ExamSettings{}, blank, match, order)

	s := sessionWith(map[uuid.UUID]model.AnswerValue{
		blank.ID: {Type: model.QuestionTypeFillBlank, Blanks: []string{" new york ", "PARIS"}},
		match.ID: {Type: model.QuestionTypeMatch, Pairs: map[string]string{"x": "1", "y": "2"}},
		order.ID: {Type: model.QuestionTypeOrder, Sequence: []string{"p", "r", "q"}},
	})
	res := NewScorer(DefaultScoringPolicy()).Score(b, s)

	if res.ObtainedMarks != 5 {
		t.Fatalf("obtained = %v, want 5", res.ObtainedMarks)
	}
	if c := res.Breakdown[2].IsCorrect; c == nil || *c {
		t.Errorf("wrong order marked correct")
	}
}

func TestScorerSubjectivePendingReview(t *testing.T) {
	mcq := singleChoice(2, "a")
	essay := model.Question{ID: uuid.New(), Type: model.QuestionTypeLongAnswer, Marks: 8}
	skipped := model.Question{ID: uuid.New(), Type: model.QuestionTypeShortAnswer, Marks: 2}
	b := bundleOf(model.ExamSettings{Cutoff: 10}, mcq, essay, skipped)

	s := sessionWith(map[uuid.UUID]model.AnswerValue{
		mcq.ID:   {Type: model.QuestionTypeSingleChoice, Choice: "a"},
		essay.ID: {Type: model.QuestionTypeLongAnswer, Text: "An essay."},
	})
	res := NewScorer(DefaultScoringPolicy()).Score(b, s)

	if res.State != model.ResultStatePendingReview {
		t.Fatalf("state = %s, want pending_review", res.State)
	}
	if res.Passed != nil {
		t.Errorf("passed = %v, want nil while pending review", *res.Passed)
	}
	if res.Breakdown[1].MarksAwarded != nil || !res.Breakdown[1].PendingReview {
		t.Errorf("essay breakdown = %+v", res.Breakdown[1])
	}
	if m := res.Breakdown[2].MarksAwarded; m == nil || *m != 0 {
		t.Errorf("unanswered subjective should score 0")
	}
	if res.ObtainedMarks != 2 || res.TotalMarks != 12 {
		t.Errorf("obtained=%v total=%v", res.ObtainedMarks, res.TotalMarks)
	}
}

func TestScorerObtainedEqualsBreakdownSum(t *testing.T) {
	q1, q2, q3 := singleChoice(3, "a"), singleChoice(2, "b"), singleChoice(1, "c")
	b := bundleOf(model.ExamSettings{EnableNegativeMarking: true, NegativeMarks: 0.5}, q1, q2, q3)
	s := sessionWith(map[uuid.UUID]model.AnswerValue{
		q1.ID: {Type: model.QuestionTypeSingleChoice, Choice: "a"},
		q2.ID: {Type: model.QuestionTypeSingleChoice, Choice: "d"},
	})
	res := NewScorer(ScoringPolicy{PartialRounding: RoundingFloor}).Score(b, s)

	var sum float64
	for _, qr := range res.Breakdown {
		if qr.MarksAwarded != nil {
			sum += *qr.MarksAwarded
		}
	}
	if sum != res.ObtainedMarks {
		t.Errorf("breakdown sum %v != obtained %v", sum, res.ObtainedMarks)
	}
}

func TestScorerEmptyExam(t *testing.T) {
	res := NewScorer(DefaultScoringPolicy()).Score(bundleOf(model.ExamSettings{Cutoff: 0}), sessionWith(nil))
	if res.Percentage != 0 || res.TotalMarks != 0 {
		t.Errorf("pct=%v total=%v, want zeros", res.Percentage, res.TotalMarks)
	}
}
