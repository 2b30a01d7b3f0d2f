package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnswerValue is a tagged union keyed by Type. Only the field matching the
// type is meaningful:
//
//	single_choice            Choice
//	multi_choice             Choices
//	fill_blank               Blanks
//	match                    Pairs
//	order                    Sequence
//	short_answer/long_answer Text
type AnswerValue struct {
	Type     QuestionType      `json:"type"`
	Choice   string            `json:"choice,omitempty"`
	Choices  []string          `json:"choices,omitempty"`
	Blanks   []string          `json:"blanks,omitempty"`
	Pairs    map[string]string `json:"pairs,omitempty"`
	Sequence []string          `json:"sequence,omitempty"`
	Text     string            `json:"text,omitempty"`
}

// IsEmpty reports whether the value clears the answer.
func (v AnswerValue) IsEmpty() bool {
	switch v.Type {
	case QuestionTypeSingleChoice:
		return v.Choice == ""
	case QuestionTypeMultiChoice:
		return len(v.Choices) == 0
	case QuestionTypeFillBlank:
		for _, b := range v.Blanks {
			if strings.TrimSpace(b) != "" {
				return false
			}
		}
		return true
	case QuestionTypeMatch:
		return len(v.Pairs) == 0
	case QuestionTypeOrder:
		return len(v.Sequence) == 0
	case QuestionTypeShortAnswer, QuestionTypeLongAnswer:
		return strings.TrimSpace(v.Text) == ""
	}
	return true
}

// Validate checks the value's shape against the question it answers. Empty
// values of the right type are always accepted.
func (v AnswerValue) Validate(q *Question) error {
	if v.Type != q.Type {
		return shapeErr("expected %s answer, got %q", q.Type, v.Type)
	}
	if v.IsEmpty() {
		return nil
	}

	switch v.Type {
	case QuestionTypeSingleChoice:
		if !contains(q.Options, v.Choice) {
			return shapeErr("unknown option %q", v.Choice)
		}
	case QuestionTypeMultiChoice:
		seen := make(map[string]struct{}, len(v.Choices))
		for _, c := range v.Choices {
			if !contains(q.Options, c) {
				return shapeErr("unknown option %q", c)
			}
			if _, dup := seen[c]; dup {
				return shapeErr("option %q selected twice", c)
			}
			seen[c] = struct{}{}
		}
	case QuestionTypeFillBlank:
		if len(v.Blanks) != q.BlanksCount {
			return shapeErr("expected %d blanks, got %d", q.BlanksCount, len(v.Blanks))
		}
	case QuestionTypeMatch:
		rights := make(map[string]struct{}, len(q.CorrectAnswer.Pairs))
		for _, r := range q.CorrectAnswer.Pairs {
			rights[r] = struct{}{}
		}
		for left, right := range v.Pairs {
			if _, ok := q.CorrectAnswer.Pairs[left]; !ok {
				return shapeErr("unknown match item %q", left)
			}
			if _, ok := rights[right]; !ok {
				return shapeErr("unknown match target %q", right)
			}
		}
	case QuestionTypeOrder:
		if len(v.Sequence) != len(q.CorrectAnswer.Sequence) {
			return shapeErr("expected %d items, got %d", len(q.CorrectAnswer.Sequence), len(v.Sequence))
		}
		seen := make(map[string]struct{}, len(v.Sequence))
		for _, item := range v.Sequence {
			if !contains(q.CorrectAnswer.Sequence, item) {
				return shapeErr("unknown item %q", item)
			}
			if _, dup := seen[item]; dup {
				return shapeErr("item %q listed twice", item)
			}
			seen[item] = struct{}{}
		}
	}
	return nil
}

func shapeErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidAnswerShape, fmt.Sprintf(format, args...))
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// Answer is the live answer of one question in a session.
type Answer struct {
	QuestionID uuid.UUID   `json:"question_id"`
	Value      AnswerValue `json:"value"`
	RecordedAt time.Time   `json:"recorded_at"`
	IsAutoSave bool        `json:"is_auto_save"`
}

// QuestionStatus is the navigation state of a question within a session.
type QuestionStatus string

const (
	QuestionStatusNotVisited             QuestionStatus = "not_visited"
	QuestionStatusNotAnswered            QuestionStatus = "not_answered"
	QuestionStatusAnswered               QuestionStatus = "answered"
	QuestionStatusMarkedForReview        QuestionStatus = "marked_for_review"
	QuestionStatusAnsweredMarkedToReview QuestionStatus = "answered_mark_for_review"
)

// Valid reports whether s is a known question status.
func (s QuestionStatus) Valid() bool {
	switch s {
	case QuestionStatusNotVisited, QuestionStatusNotAnswered, QuestionStatusAnswered,
		QuestionStatusMarkedForReview, QuestionStatusAnsweredMarkedToReview:
		return true
	}
	return false
}

// NextQuestionStatus is the status a question moves to after an answer write.
// Clearing an answer always demotes to not_answered.
func NextQuestionStatus(current QuestionStatus, cleared bool) QuestionStatus {
	if cleared {
		return QuestionStatusNotAnswered
	}
	if current == QuestionStatusMarkedForReview || current == QuestionStatusAnsweredMarkedToReview {
		return QuestionStatusAnsweredMarkedToReview
	}
	return QuestionStatusAnswered
}

// RecordAnswerRequest is the payload for saving an answer.
type RecordAnswerRequest struct {
	Value      *AnswerValue `json:"value" binding:"required"`
	IsAutoSave bool         `json:"is_auto_save"`
}

// MarkStatusRequest is the payload for syncing a question's navigation status.
type MarkStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=not_visited not_answered answered marked_for_review answered_mark_for_review"`
}
