package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states. Completed and expired are terminal.
type SessionStatus string

const (
	SessionStatusStarted   SessionStatus = "started"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusExpired   SessionStatus = "expired"
)

// Terminal reports whether no further writes are accepted in this state.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusExpired
}

// Session represents a user's attempt at a scheduled exam.
type Session struct {
	ID               uuid.UUID                    `json:"id"`
	UserID           int                          `json:"user_id"`
	ExamID           uuid.UUID                    `json:"exam_id"`
	ScheduleID       uuid.UUID                    `json:"schedule_id"`
	AttemptNumber    int                          `json:"attempt_number"`
	Status           SessionStatus                `json:"status"`
	StartedAt        time.Time                    `json:"started_at"`
	ExpiresAt        time.Time                    `json:"expires_at"`
	SubmittedAt      *time.Time                   `json:"submitted_at,omitempty"`
	Answers          map[uuid.UUID]Answer         `json:"answers"`
	QuestionStatuses map[uuid.UUID]QuestionStatus `json:"question_statuses"`
	// Version increases with every write; the Redis store uses it for
	// optimistic finalization.
	Version int64 `json:"-"`
}

// PastDeadline reports whether now is after the session's expiry.
func (s *Session) PastDeadline(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// TimeRemaining is max(0, expiresAt - now).
func (s *Session) TimeRemaining(now time.Time) time.Duration {
	remaining := s.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// NewSessionParams carries what a store needs to create a session.
type NewSessionParams struct {
	UserID      int
	ExamID      uuid.UUID
	ScheduleID  uuid.UUID
	QuestionIDs []uuid.UUID
	Now         time.Time
	Duration    time.Duration
	// MaxAttempts caps the user's terminal sessions on the schedule; nil is unlimited.
	MaxAttempts *int
}

// SessionState is what the student client needs after a reload.
type SessionState struct {
	Session              *Session `json:"session"`
	RemainingTimeSeconds float64  `json:"remaining_time_seconds"`
}
