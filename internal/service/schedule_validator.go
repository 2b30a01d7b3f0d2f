package service

import (
	"time"

	"github.com/stemsi/exstem-session/internal/model"
)

// DefaultEditMargin is how long before its start a schedule freezes.
const DefaultEditMargin = 15 * time.Second

// ScheduleValidator decides whether a schedule admits a new attempt or an edit.
type ScheduleValidator struct {
	editMargin time.Duration
}

// NewScheduleValidator creates a validator. A non-positive margin falls back to DefaultEditMargin.
func NewScheduleValidator(editMargin time.Duration) *ScheduleValidator {
	if editMargin <= 0 {
		editMargin = DefaultEditMargin
	}
	return &ScheduleValidator{editMargin: editMargin}
}

// CanStart returns nil when a new session may start, or the first failing
// reason in order: disabled, outside window, attempts exhausted.
func (v *ScheduleValidator) CanStart(s *model.Schedule, attemptCount int, now time.Time) error {
	if s.Status != model.ScheduleStatusActive {
		return model.ErrScheduleDisabled
	}
	if now.Before(s.StartAt) || now.After(s.EffectiveEnd()) {
		return model.ErrOutsideWindow
	}
	if s.MaxAttempts != nil && attemptCount >= *s.MaxAttempts {
		return model.ErrAttemptsExceeded
	}
	return nil
}

// CanModify reports whether now is still more than the edit margin before the start.
func (v *ScheduleValidator) CanModify(s *model.Schedule, now time.Time) bool {
	return now.Before(s.StartAt.Add(-v.editMargin))
}
