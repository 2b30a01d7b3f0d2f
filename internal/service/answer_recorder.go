package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/model"
)

// AnswerRecorder validates and stores answer writes. Auto-saves and explicit
// saves take the same path; the flag only reaches the audit trail.
type AnswerRecorder struct {
	store   SessionStore
	catalog ExamCatalog
	audit   AnswerAuditSink
	log     zerolog.Logger
}

// NewAnswerRecorder creates a new AnswerRecorder. audit may be nil.
func NewAnswerRecorder(store SessionStore, catalog ExamCatalog, audit AnswerAuditSink, log zerolog.Logger) *AnswerRecorder {
	return &AnswerRecorder{
		store:   store,
		catalog: catalog,
		audit:   audit,
		log:     log.With().Str("component", "answer_recorder").Logger(),
	}
}

// Record stores value as the answer to questionID, stamped with now.
func (r *AnswerRecorder) Record(ctx context.Context, sessionID, questionID uuid.UUID, value model.AnswerValue, now time.Time, isAutoSave bool) error {
	s, err := r.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if s.Status != model.SessionStatusStarted {
		return model.ErrSessionClosed
	}
	if s.PastDeadline(now) {
		return model.ErrSessionExpired
	}

	bundle, err := r.catalog.GetBundle(ctx, s.ExamID)
	if err != nil {
		return err
	}
	q, ok := bundle.Question(questionID)
	if !ok {
		return fmt.Errorf("question %s: %w", questionID, model.ErrNotFound)
	}
	if err := value.Validate(q); err != nil {
		return err
	}

	answer := model.Answer{
		QuestionID: questionID,
		Value:      value,
		RecordedAt: now,
		IsAutoSave: isAutoSave,
	}
	if err := r.store.RecordAnswer(ctx, s.ID, answer, now); err != nil {
		return err
	}

	if r.audit != nil {
		event := model.AnswerAuditEvent{
			SessionID:  s.ID,
			ExamID:     s.ExamID,
			UserID:     s.UserID,
			QuestionID: questionID,
			Value:      value,
			IsAutoSave: isAutoSave,
			RecordedAt: now,
		}
		if err := r.audit.Push(ctx, event); err != nil {
			r.log.Warn().Err(err).
				Str("session_id", s.ID.String()).
				Str("question_id", questionID.String()).
				Msg("Failed to queue answer audit event")
		}
	}
	return nil
}
