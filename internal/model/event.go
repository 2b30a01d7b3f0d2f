package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerAuditEvent is one accepted answer write, queued for the audit trail.
type AnswerAuditEvent struct {
	SessionID  uuid.UUID   `json:"session_id"`
	ExamID     uuid.UUID   `json:"exam_id"`
	UserID     int         `json:"user_id"`
	QuestionID uuid.UUID   `json:"question_id"`
	Value      AnswerValue `json:"value"`
	IsAutoSave bool        `json:"is_auto_save"`
	RecordedAt time.Time   `json:"recorded_at"`
}

// SessionEventType names a lifecycle transition.
type SessionEventType string

const (
	EventSessionStarted   SessionEventType = "session_started"
	EventSessionSubmitted SessionEventType = "session_submitted"
	EventSessionExpired   SessionEventType = "session_expired"
)

// SessionEvent is broadcast on the exam's monitor channel.
type SessionEvent struct {
	Type          SessionEventType `json:"type"`
	SessionID     uuid.UUID        `json:"session_id"`
	ExamID        uuid.UUID        `json:"exam_id"`
	ScheduleID    uuid.UUID        `json:"schedule_id"`
	UserID        int              `json:"user_id"`
	ObtainedMarks *float64         `json:"obtained_marks,omitempty"`
	At            time.Time        `json:"at"`
}
