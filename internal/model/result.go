package model

import (
	"time"

	"github.com/google/uuid"
)

// ResultState separates fully auto-scored results from ones waiting on a grader.
type ResultState string

const (
	ResultStateScored        ResultState = "scored"
	ResultStatePendingReview ResultState = "pending_review"
)

// QuestionResult is the per-question breakdown of a result.
// MarksAwarded is nil while the answer waits for manual grading.
type QuestionResult struct {
	QuestionID    uuid.UUID    `json:"question_id"`
	Type          QuestionType `json:"question_type"`
	Answered      bool         `json:"answered"`
	IsCorrect     *bool        `json:"is_correct"`
	MarksAwarded  *float64     `json:"marks_awarded"`
	MaxMarks      float64      `json:"max_marks"`
	PendingReview bool         `json:"pending_review"`
}

// Result is the immutable outcome of a terminal session.
type Result struct {
	SessionID     uuid.UUID        `json:"session_id"`
	ExamID        uuid.UUID        `json:"exam_id"`
	ScheduleID    uuid.UUID        `json:"schedule_id"`
	UserID        int              `json:"user_id"`
	Outcome       SessionStatus    `json:"outcome"`
	State         ResultState      `json:"state"`
	ObtainedMarks float64          `json:"obtained_marks"`
	TotalMarks    float64          `json:"total_marks"`
	Percentage    float64          `json:"percentage"`
	Passed        *bool            `json:"passed"`
	Breakdown     []QuestionResult `json:"breakdown"`
	CreatedAt     time.Time        `json:"created_at"`
}

// ScoreFunc computes the result of a session snapshot. Stores call it while
// holding the session's finalization lock.
type ScoreFunc func(s *Session) (*Result, error)
