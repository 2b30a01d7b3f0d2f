package model

import "errors"

// Policy denials: expected outcomes surfaced to the user.
var (
	ErrScheduleDisabled     = errors.New("schedule is not active")
	ErrOutsideWindow        = errors.New("schedule window is not open")
	ErrAttemptsExceeded     = errors.New("attempt limit reached for this schedule")
	ErrSessionAlreadyActive = errors.New("a session is already in progress for this schedule")
	ErrSessionExpired       = errors.New("session time has run out")
	ErrSessionClosed        = errors.New("session is already closed")
	ErrScheduleLocked       = errors.New("schedule can no longer be modified")
)

// Client errors.
var (
	ErrInvalidAnswerShape = errors.New("answer does not match question type")
	ErrNotFound           = errors.New("not found")
	ErrNotReady           = errors.New("result is not ready")
)

// ErrAlreadyFinalized signals an orchestration bug: a session was finalized
// with an outcome that conflicts with the one it already has.
var ErrAlreadyFinalized = errors.New("session already finalized with a different outcome")

// ErrStoreUnavailable wraps persistence failures the adapter considers transient.
var ErrStoreUnavailable = errors.New("session store unavailable")
