package service

import (
	"math"
	"strings"

	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
)

// Rounding modes for partial marks.
const (
	RoundingFloor = "floor"
	RoundingNone  = "none"
)

// ScoringPolicy holds the tunable parts of scoring.
type ScoringPolicy struct {
	// PartialRounding is applied to partial multi-choice credit.
	PartialRounding string
	// ClampPerQuestion keeps each question's contribution at or above QuestionFloor.
	ClampPerQuestion bool
	QuestionFloor    float64
}

// DefaultScoringPolicy floors partial credit to whole marks and never lets a
// question contribute less than zero.
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{PartialRounding: RoundingFloor, ClampPerQuestion: true}
}

// ScoringPolicyFromConfig maps configuration onto a policy.
func ScoringPolicyFromConfig(cfg config.ScoringConfig) ScoringPolicy {
	p := ScoringPolicy{
		PartialRounding:  cfg.PartialRounding,
		ClampPerQuestion: cfg.ClampPerQuestion,
		QuestionFloor:    cfg.QuestionFloor,
	}
	if p.PartialRounding != RoundingNone {
		p.PartialRounding = RoundingFloor
	}
	return p
}

// Scorer turns a terminal session snapshot into a Result.
type Scorer struct {
	policy ScoringPolicy
}

// NewScorer creates a new Scorer.
func NewScorer(policy ScoringPolicy) *Scorer {
	return &Scorer{policy: policy}
}

// Score computes the result of session s against the exam bundle.
func (sc *Scorer) Score(bundle *model.ExamBundle, s *model.Session) *model.Result {
	res := &model.Result{
		SessionID:  s.ID,
		ExamID:     s.ExamID,
		ScheduleID: s.ScheduleID,
		UserID:     s.UserID,
		Outcome:    s.Status,
		State:      model.ResultStateScored,
		TotalMarks: model.TotalMarks(bundle.Questions),
		Breakdown:  make([]model.QuestionResult, 0, len(bundle.Questions)),
	}

	for i := range bundle.Questions {
		q := &bundle.Questions[i]
		qr := model.QuestionResult{QuestionID: q.ID, Type: q.Type, MaxMarks: q.Marks}

		a, ok := s.Answers[q.ID]
		qr.Answered = ok && !a.Value.IsEmpty()

		switch {
		case !qr.Answered:
			zero := 0.0
			qr.MarksAwarded = &zero
		case q.Type.Subjective():
			qr.PendingReview = true
			res.State = model.ResultStatePendingReview
		default:
			correct, marks := sc.scoreObjective(q, a.Value, bundle.Exam.Settings)
			qr.IsCorrect = &correct
			qr.MarksAwarded = &marks
			res.ObtainedMarks += marks
		}
		res.Breakdown = append(res.Breakdown, qr)
	}

	if res.TotalMarks > 0 {
		res.Percentage = res.ObtainedMarks / res.TotalMarks * 100
	}
	if res.State == model.ResultStateScored {
		passed := res.Percentage >= bundle.Exam.Settings.Cutoff
		res.Passed = &passed
	}
	return res
}

func (sc *Scorer) scoreObjective(q *model.Question, v model.AnswerValue, settings model.ExamSettings) (bool, float64) {
	if answersEqual(q, v) {
		return true, q.Marks
	}

	var marks float64
	earned := false
	if q.Type == model.QuestionTypeMultiChoice && q.PartialMarking {
		marks, earned = sc.partialCredit(q, v)
	}
	// A net-positive selection is exempt from the penalty even when rounding
	// leaves it with zero marks.
	if !earned {
		marks = -q.Penalty(settings)
	}
	if sc.policy.ClampPerQuestion && marks < sc.policy.QuestionFloor {
		marks = sc.policy.QuestionFloor
	}
	return false, marks
}

// partialCredit is marks * max(0, correctSelected - incorrectSelected) / |correct|.
// It reports whether the selection was net positive.
func (sc *Scorer) partialCredit(q *model.Question, v model.AnswerValue) (float64, bool) {
	correctSet := toSet(q.CorrectAnswer.Choices)
	if len(correctSet) == 0 {
		return 0, false
	}
	var right, wrong int
	for _, c := range v.Choices {
		if _, ok := correctSet[c]; ok {
			right++
		} else {
			wrong++
		}
	}
	net := right - wrong
	if net <= 0 {
		return 0, false
	}
	credit := q.Marks * float64(net) / float64(len(correctSet))
	if sc.policy.PartialRounding == RoundingFloor {
		credit = math.Floor(credit)
	}
	return credit, true
}

func answersEqual(q *model.Question, v model.AnswerValue) bool {
	want := q.CorrectAnswer
	switch q.Type {
	case model.QuestionTypeSingleChoice:
		return v.Choice == want.Choice
	case model.QuestionTypeMultiChoice:
		return sameSet(v.Choices, want.Choices)
	case model.QuestionTypeFillBlank:
		if len(v.Blanks) != len(want.Blanks) {
			return false
		}
		for i := range want.Blanks {
			if normalizeBlank(v.Blanks[i]) != normalizeBlank(want.Blanks[i]) {
				return false
			}
		}
		return true
	case model.QuestionTypeMatch:
		if len(v.Pairs) != len(want.Pairs) {
			return false
		}
		for left, right := range want.Pairs {
			if v.Pairs[left] != right {
				return false
			}
		}
		return true
	case model.QuestionTypeOrder:
		if len(v.Sequence) != len(want.Sequence) {
			return false
		}
		for i := range want.Sequence {
			if v.Sequence[i] != want.Sequence[i] {
				return false
			}
		}
		return true
	}
	return false
}

func normalizeBlank(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

func sameSet(a, b []string) bool {
	sa, sb := toSet(a), toSet(b)
	if len(sa) != len(sb) {
		return false
	}
	for k := range sa {
		if _, ok := sb[k]; !ok {
			return false
		}
	}
	return true
}
