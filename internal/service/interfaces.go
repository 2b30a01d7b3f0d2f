package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-session/internal/model"
)

// SessionStore persists sessions, answers and results. Implementations must
// serialize writes per session, create at most one started session per
// (user, schedule), and make finalization atomic with the result write.
type SessionStore interface {
	Create(ctx context.Context, p model.NewSessionParams) (*model.Session, error)
	Get(ctx context.Context, sessionID uuid.UUID) (*model.Session, error)
	GetActive(ctx context.Context, userID int, scheduleID uuid.UUID) (*model.Session, error)
	CountAttempts(ctx context.Context, userID int, scheduleID uuid.UUID) (int, error)
	MarkStatus(ctx context.Context, sessionID, questionID uuid.UUID, status model.QuestionStatus) error
	RecordAnswer(ctx context.Context, sessionID uuid.UUID, a model.Answer, now time.Time) error
	Finalize(ctx context.Context, sessionID uuid.UUID, now time.Time, outcome model.SessionStatus, score model.ScoreFunc) (*model.Result, error)
	GetResult(ctx context.Context, sessionID uuid.UUID) (*model.Result, error)
}

// ExamCatalog looks up exams and schedules owned by the authoring side.
type ExamCatalog interface {
	GetBundle(ctx context.Context, examID uuid.UUID) (*model.ExamBundle, error)
	GetSchedule(ctx context.Context, scheduleID uuid.UUID) (*model.Schedule, error)
}

// AnswerAuditSink receives every accepted answer write.
type AnswerAuditSink interface {
	Push(ctx context.Context, e model.AnswerAuditEvent) error
}

// ResultSink receives every finalized result.
type ResultSink interface {
	Push(ctx context.Context, r *model.Result) error
}

// EventPublisher fans session lifecycle events out to monitors.
type EventPublisher interface {
	Publish(ctx context.Context, e model.SessionEvent) error
}
