package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/clock"
	"github.com/stemsi/exstem-session/internal/model"
)

// ErrNotSessionOwner is returned when a user touches someone else's session.
var ErrNotSessionOwner = errors.New("session belongs to another user")

// SessionLifecycle drives a session through started -> completed | expired.
// Expiry is detected lazily: the first interaction after the deadline
// finalizes the session as expired.
type SessionLifecycle struct {
	store     SessionStore
	catalog   ExamCatalog
	validator *ScheduleValidator
	recorder  *AnswerRecorder
	scorer    *Scorer
	clock     clock.Clock
	events    EventPublisher
	results   ResultSink
	log       zerolog.Logger
}

// LifecycleDeps groups the collaborators of SessionLifecycle.
// Events and Results are optional.
type LifecycleDeps struct {
	Store     SessionStore
	Catalog   ExamCatalog
	Validator *ScheduleValidator
	Recorder  *AnswerRecorder
	Scorer    *Scorer
	Clock     clock.Clock
	Events    EventPublisher
	Results   ResultSink
}

// NewSessionLifecycle creates a new SessionLifecycle.
func NewSessionLifecycle(d LifecycleDeps, log zerolog.Logger) *SessionLifecycle {
	return &SessionLifecycle{
		store:     d.Store,
		catalog:   d.Catalog,
		validator: d.Validator,
		recorder:  d.Recorder,
		scorer:    d.Scorer,
		clock:     d.Clock,
		events:    d.Events,
		results:   d.Results,
		log:       log.With().Str("component", "session_lifecycle").Logger(),
	}
}

// Start opens a new session for userID on a schedule of examID.
func (l *SessionLifecycle) Start(ctx context.Context, userID int, examID, scheduleID uuid.UUID) (*model.Session, error) {
	schedule, err := l.catalog.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if schedule.ExamID != examID {
		return nil, fmt.Errorf("schedule %s of exam %s: %w", scheduleID, examID, model.ErrNotFound)
	}
	bundle, err := l.catalog.GetBundle(ctx, examID)
	if err != nil {
		return nil, err
	}
	if bundle.Exam.Status != model.ExamStatusPublished {
		return nil, fmt.Errorf("exam %s is %s: %w", examID, bundle.Exam.Status, model.ErrNotFound)
	}

	now := l.clock.Now()
	sess, err := l.tryStart(ctx, userID, schedule, bundle, now)
	if errors.Is(err, model.ErrSessionAlreadyActive) {
		// A leftover session past its deadline is expired here, which may
		// also use up the last attempt.
		recovered, rerr := l.expireStale(ctx, userID, scheduleID, now)
		if rerr != nil {
			return nil, rerr
		}
		if recovered {
			sess, err = l.tryStart(ctx, userID, schedule, bundle, now)
		}
	}
	if err != nil {
		return nil, err
	}

	l.log.Info().
		Str("session_id", sess.ID.String()).
		Int("user_id", userID).
		Str("schedule_id", scheduleID.String()).
		Int("attempt", sess.AttemptNumber).
		Msg("Session started")
	l.publish(ctx, model.EventSessionStarted, sess, nil, now)
	return sess, nil
}

// tryStart checks the schedule and creates the session. The store enforces the
// attempt cap again atomically, since a running session may finish between the
// count and the create.
func (l *SessionLifecycle) tryStart(ctx context.Context, userID int, schedule *model.Schedule, bundle *model.ExamBundle, now time.Time) (*model.Session, error) {
	attempts, err := l.store.CountAttempts(ctx, userID, schedule.ID)
	if err != nil {
		return nil, err
	}
	if err := l.validator.CanStart(schedule, attempts, now); err != nil {
		return nil, err
	}
	return l.store.Create(ctx, model.NewSessionParams{
		UserID:      userID,
		ExamID:      bundle.Exam.ID,
		ScheduleID:  schedule.ID,
		QuestionIDs: bundle.QuestionIDs(),
		Now:         now,
		Duration:    bundle.Exam.Duration(),
		MaxAttempts: schedule.MaxAttempts,
	})
}

// expireStale finalizes the user's active session if it ran past its
// deadline and reports whether it did.
func (l *SessionLifecycle) expireStale(ctx context.Context, userID int, scheduleID uuid.UUID, now time.Time) (bool, error) {
	active, err := l.store.GetActive(ctx, userID, scheduleID)
	if errors.Is(err, model.ErrNotFound) {
		// Finished between the create attempt and this lookup.
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if !active.PastDeadline(now) {
		return false, nil
	}
	if _, err := l.finalize(ctx, active, now, model.SessionStatusExpired); err != nil && !errors.Is(err, model.ErrAlreadyFinalized) {
		return false, err
	}
	return true, nil
}

// Authorize loads a session and checks that userID owns it.
func (l *SessionLifecycle) Authorize(ctx context.Context, sessionID uuid.UUID, userID int) (*model.Session, error) {
	sess, err := l.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, ErrNotSessionOwner
	}
	return sess, nil
}

// GetSession returns the session with its remaining time.
func (l *SessionLifecycle) GetSession(ctx context.Context, sessionID uuid.UUID) (*model.SessionState, error) {
	sess, err := l.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &model.SessionState{
		Session:              sess,
		RemainingTimeSeconds: l.remaining(sess, l.clock.Now()).Seconds(),
	}, nil
}

// RecordAnswer stores an explicit answer.
func (l *SessionLifecycle) RecordAnswer(ctx context.Context, sessionID, questionID uuid.UUID, value model.AnswerValue) error {
	return l.record(ctx, sessionID, questionID, value, false)
}

// AutoSave stores a periodic client save. Same effect as RecordAnswer.
func (l *SessionLifecycle) AutoSave(ctx context.Context, sessionID, questionID uuid.UUID, value model.AnswerValue) error {
	return l.record(ctx, sessionID, questionID, value, true)
}

func (l *SessionLifecycle) record(ctx context.Context, sessionID, questionID uuid.UUID, value model.AnswerValue, isAutoSave bool) error {
	now := l.clock.Now()
	err := l.recorder.Record(ctx, sessionID, questionID, value, now, isAutoSave)
	if errors.Is(err, model.ErrSessionExpired) {
		l.expire(ctx, sessionID, now)
	}
	return err
}

// MarkStatus syncs a question's navigation status from the client.
func (l *SessionLifecycle) MarkStatus(ctx context.Context, sessionID, questionID uuid.UUID, status model.QuestionStatus) error {
	if !status.Valid() {
		return fmt.Errorf("question status %q: %w", status, model.ErrInvalidAnswerShape)
	}
	sess, err := l.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status != model.SessionStatusStarted {
		return model.ErrSessionClosed
	}
	now := l.clock.Now()
	if sess.PastDeadline(now) {
		l.expire(ctx, sessionID, now)
		return model.ErrSessionExpired
	}
	return l.store.MarkStatus(ctx, sessionID, questionID, status)
}

// expire finalizes a session as expired on behalf of a request that hit the deadline.
func (l *SessionLifecycle) expire(ctx context.Context, sessionID uuid.UUID, now time.Time) {
	_, err := l.Submit(ctx, sessionID, model.SessionStatusExpired)
	if err != nil && !errors.Is(err, model.ErrAlreadyFinalized) {
		l.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Failed to expire session")
	}
}

// Submit finalizes a session with outcome and returns its result. A manual
// submission is always completed, even slightly past the deadline.
func (l *SessionLifecycle) Submit(ctx context.Context, sessionID uuid.UUID, outcome model.SessionStatus) (*model.Result, error) {
	if !outcome.Terminal() {
		return nil, fmt.Errorf("invalid outcome %q", outcome)
	}
	sess, err := l.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return l.finalize(ctx, sess, l.clock.Now(), outcome)
}

func (l *SessionLifecycle) finalize(ctx context.Context, sess *model.Session, now time.Time, outcome model.SessionStatus) (*model.Result, error) {
	bundle, err := l.catalog.GetBundle(ctx, sess.ExamID)
	if err != nil {
		return nil, err
	}

	result, err := l.store.Finalize(ctx, sess.ID, now, outcome, func(s *model.Session) (*model.Result, error) {
		return l.scorer.Score(bundle, s), nil
	})
	if err != nil {
		if errors.Is(err, model.ErrAlreadyFinalized) {
			l.log.Error().Err(err).
				Str("session_id", sess.ID.String()).
				Str("outcome", string(outcome)).
				Msg("Conflicting finalization")
		}
		return nil, err
	}

	event := model.EventSessionSubmitted
	if outcome == model.SessionStatusExpired {
		event = model.EventSessionExpired
	}
	l.log.Info().
		Str("session_id", sess.ID.String()).
		Str("outcome", string(outcome)).
		Float64("obtained", result.ObtainedMarks).
		Msg("Session finalized")
	l.publish(ctx, event, sess, &result.ObtainedMarks, now)

	if l.results != nil {
		if err := l.results.Push(ctx, result); err != nil {
			l.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to queue result for archive")
		}
	}
	return result, nil
}

// TimeRemaining is max(0, expiresAt - now); zero once the session is closed.
func (l *SessionLifecycle) TimeRemaining(ctx context.Context, sessionID uuid.UUID) (time.Duration, error) {
	sess, err := l.store.Get(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return l.remaining(sess, l.clock.Now()), nil
}

func (l *SessionLifecycle) remaining(sess *model.Session, now time.Time) time.Duration {
	if sess.Status.Terminal() {
		return 0
	}
	return sess.TimeRemaining(now)
}

// GetResult returns the result of a finalized session. A started session past
// its deadline is expired first; one still running yields ErrNotReady.
func (l *SessionLifecycle) GetResult(ctx context.Context, sessionID uuid.UUID) (*model.Result, error) {
	sess, err := l.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == model.SessionStatusStarted {
		now := l.clock.Now()
		if !sess.PastDeadline(now) {
			return nil, model.ErrNotReady
		}
		l.expire(ctx, sessionID, now)
	}
	return l.store.GetResult(ctx, sessionID)
}

func (l *SessionLifecycle) publish(ctx context.Context, t model.SessionEventType, sess *model.Session, obtained *float64, now time.Time) {
	if l.events == nil {
		return
	}
	e := model.SessionEvent{
		Type:          t,
		SessionID:     sess.ID,
		ExamID:        sess.ExamID,
		ScheduleID:    sess.ScheduleID,
		UserID:        sess.UserID,
		ObtainedMarks: obtained,
		At:            now,
	}
	if err := l.events.Publish(ctx, e); err != nil {
		l.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to publish session event")
	}
}
