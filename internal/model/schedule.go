package model

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleType distinguishes fixed-slot schedules from open windows.
type ScheduleType string

const (
	ScheduleTypeFixed    ScheduleType = "fixed"
	ScheduleTypeFlexible ScheduleType = "flexible"
)

// ScheduleStatus enumerates schedule states.
type ScheduleStatus string

const (
	ScheduleStatusActive   ScheduleStatus = "active"
	ScheduleStatusExpired  ScheduleStatus = "expired"
	ScheduleStatusDisabled ScheduleStatus = "disabled"
)

// Schedule is a window during which an exam attempt may be started.
type Schedule struct {
	ID                 uuid.UUID      `json:"id"`
	ExamID             uuid.UUID      `json:"exam_id"`
	Type               ScheduleType   `json:"schedule_type"`
	StartAt            time.Time      `json:"start_at"`
	EndAt              time.Time      `json:"end_at"`
	GracePeriodSeconds int            `json:"grace_period_seconds"`
	MaxAttempts        *int           `json:"max_attempts,omitempty"`
	Status             ScheduleStatus `json:"status"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// EffectiveEnd is the last instant a session may be started. Fixed schedules
// get their grace period on top of the frozen end.
func (s *Schedule) EffectiveEnd() time.Time {
	if s.Type == ScheduleTypeFixed {
		return s.EndAt.Add(time.Duration(s.GracePeriodSeconds) * time.Second)
	}
	return s.EndAt
}

// CreateScheduleRequest is the payload for scheduling an exam.
// EndAt is ignored for fixed schedules.
type CreateScheduleRequest struct {
	ScheduleType       string     `json:"schedule_type" binding:"required,oneof=fixed flexible"`
	StartAt            time.Time  `json:"start_at" binding:"required"`
	EndAt              *time.Time `json:"end_at" binding:"required_if=ScheduleType flexible,omitempty,gtfield=StartAt"`
	GracePeriodSeconds int        `json:"grace_period_seconds" binding:"min=0,max=3600"`
	MaxAttempts        *int       `json:"max_attempts" binding:"omitempty,min=1"`
}

// UpdateScheduleRequest is the payload for editing a schedule before it starts.
type UpdateScheduleRequest struct {
	StartAt            *time.Time `json:"start_at" binding:"omitempty"`
	EndAt              *time.Time `json:"end_at" binding:"omitempty"`
	GracePeriodSeconds *int       `json:"grace_period_seconds" binding:"omitempty,min=0,max=3600"`
	MaxAttempts        *int       `json:"max_attempts" binding:"omitempty,min=1"`
}
