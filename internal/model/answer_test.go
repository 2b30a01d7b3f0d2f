package model

import (
	"errors"
	"testing"
)

func TestAnswerValueValidate(t *testing.T) {
	choice := &Question{Type: QuestionTypeSingleChoice, Options: []string{"a", "b", "c"}}
	multi := &Question{Type: QuestionTypeMultiChoice, Options: []string{"a", "b", "c"}}
	blanks := &Question{Type: QuestionTypeFillBlank, BlanksCount: 2}
	match := &Question{Type: QuestionTypeMatch, CorrectAnswer: AnswerValue{
		Type: QuestionTypeMatch, Pairs: map[string]string{"x": "1", "y": "2"},
	}}
	order := &Question{Type: QuestionTypeOrder, CorrectAnswer: AnswerValue{
		Type: QuestionTypeOrder, Sequence: []string{"p", "q", "r"},
	}}
	essay := &Question{Type: QuestionTypeLongAnswer}

	tests := []struct {
		name    string
		q       *Question
		v       AnswerValue
		wantErr bool
	}{
		{"single ok", choice, AnswerValue{Type: QuestionTypeSingleChoice, Choice: "b"}, false},
		{"single unknown option", choice, AnswerValue{Type: QuestionTypeSingleChoice, Choice: "z"}, true},
		{"single cleared", choice, AnswerValue{Type: QuestionTypeSingleChoice}, false},
		{"type mismatch", choice, AnswerValue{Type: QuestionTypeMultiChoice, Choices: []string{"a"}}, true},
		{"multi ok", multi, AnswerValue{Type: QuestionTypeMultiChoice, Choices: []string{"a", "c"}}, false},
		{"multi duplicate", multi, AnswerValue{Type: QuestionTypeMultiChoice, Choices: []string{"a", "a"}}, true},
		{"multi unknown", multi, AnswerValue{Type: QuestionTypeMultiChoice, Choices: []string{"d"}}, true},
		{"blanks ok", blanks, AnswerValue{Type: QuestionTypeFillBlank, Blanks: []string{"x", "y"}}, false},
		{"blanks wrong count", blanks, AnswerValue{Type: QuestionTypeFillBlank, Blanks: []string{"x"}}, true},
		{"blanks cleared", blanks, AnswerValue{Type: QuestionTypeFillBlank, Blanks: []string{" ", ""}}, false},
		{"match ok", match, AnswerValue{Type: QuestionTypeMatch, Pairs: map[string]string{"x": "2"}}, false},
		{"match unknown left", match, AnswerValue{Type: QuestionTypeMatch, Pairs: map[string]string{"z": "1"}}, true},
		{"match unknown right", match, AnswerValue{Type: QuestionTypeMatch, Pairs: map[string]string{"x": "9"}}, true},
		{"order ok", order, AnswerValue{Type: QuestionTypeOrder, Sequence: []string{"r", "p", "q"}}, false},
		{"order short", order, AnswerValue{Type: QuestionTypeOrder, Sequence: []string{"r", "p"}}, true},
		{"order duplicate", order, AnswerValue{Type: QuestionTypeOrder, Sequence: []string{"r", "r", "q"}}, true},
		{"essay ok", essay, AnswerValue{Type: QuestionTypeLongAnswer, Text: "because"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.v.Validate(tt.q)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAnswerShape) {
					t.Fatalf("Validate() = %v, want ErrInvalidAnswerShape", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestNextQuestionStatus(t *testing.T) {
	tests := []struct {
		current QuestionStatus
		cleared bool
		want    QuestionStatus
	}{
		{QuestionStatusNotVisited, false, QuestionStatusAnswered},
		{QuestionStatusNotAnswered, false, QuestionStatusAnswered},
		{QuestionStatusMarkedForReview, false, QuestionStatusAnsweredMarkedToReview},
		{QuestionStatusAnsweredMarkedToReview, false, QuestionStatusAnsweredMarkedToReview},
		{QuestionStatusAnswered, true, QuestionStatusNotAnswered},
		{QuestionStatusAnsweredMarkedToReview, true, QuestionStatusNotAnswered},
	}
	for _, tt := range tests {
		if got := NextQuestionStatus(tt.current, tt.cleared); got != tt.want {
			t.Errorf("NextQuestionStatus(%s, %v) = %s, want %s", tt.current, tt.cleared, got, tt.want)
		}
	}
}
