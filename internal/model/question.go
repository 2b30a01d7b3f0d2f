package model

import (
	"github.com/google/uuid"
)

// QuestionType enumerates the answer shapes the core understands.
type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "single_choice"
	QuestionTypeMultiChoice  QuestionType = "multi_choice"
	QuestionTypeFillBlank    QuestionType = "fill_blank"
	QuestionTypeMatch        QuestionType = "match"
	QuestionTypeOrder        QuestionType = "order"
	QuestionTypeShortAnswer  QuestionType = "short_answer"
	QuestionTypeLongAnswer   QuestionType = "long_answer"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeSingleChoice, QuestionTypeMultiChoice, QuestionTypeFillBlank,
		QuestionTypeMatch, QuestionTypeOrder, QuestionTypeShortAnswer, QuestionTypeLongAnswer:
		return true
	}
	return false
}

// Subjective reports whether answers of this type need manual grading.
func (t QuestionType) Subjective() bool {
	return t == QuestionTypeShortAnswer || t == QuestionTypeLongAnswer
}

// Question represents a single exam question.
type Question struct {
	ID     uuid.UUID    `json:"id"`
	ExamID uuid.UUID    `json:"exam_id"`
	Type   QuestionType `json:"question_type"`
	Marks  float64      `json:"marks"`
	// NegativeMarks overrides the exam-level deduction when set.
	NegativeMarks  *float64 `json:"negative_marks,omitempty"`
	PartialMarking bool     `json:"partial_marking"`
	// Options holds the option ids of choice questions.
	Options       []string    `json:"options,omitempty"`
	BlanksCount   int         `json:"blanks_count,omitempty"`
	CorrectAnswer AnswerValue `json:"correct_answer"`
	OrderNum      int         `json:"order_num"`
}

// Penalty returns the deduction for a wrong answer under the given settings.
func (q *Question) Penalty(settings ExamSettings) float64 {
	if !settings.EnableNegativeMarking {
		return 0
	}
	if q.NegativeMarks != nil {
		return *q.NegativeMarks
	}
	return settings.NegativeMarks
}

// PaperQuestion is a question as shown to the student: no answer key.
type PaperQuestion struct {
	ID          uuid.UUID    `json:"id"`
	Type        QuestionType `json:"question_type"`
	Marks       float64      `json:"marks"`
	Options     []string     `json:"options,omitempty"`
	BlanksCount int          `json:"blanks_count,omitempty"`
	OrderNum    int          `json:"order_num"`
}
