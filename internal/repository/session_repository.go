package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-session/internal/model"
)

// SessionRepository is the PostgreSQL session store. Writes to one session
// are serialized by row locks on exam_sessions: answer writes take FOR SHARE,
// finalization takes FOR UPDATE.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create inserts a started session. The partial unique index on
// (user_id, schedule_id) WHERE status = 'started' makes concurrent starts
// collapse into exactly one row. The attempt cap is counted under the
// (user, schedule) advisory lock that Finalize also takes, so a session
// finishing concurrently cannot slip an extra attempt past it.
func (r *SessionRepository) Create(ctx context.Context, p model.NewSessionParams) (*model.Session, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, pgError("begin create session", err)
	}
	defer tx.Rollback(ctx)

	if err := lockUserSchedule(ctx, tx, p.UserID, p.ScheduleID); err != nil {
		return nil, err
	}
	if p.MaxAttempts != nil {
		var used int
		err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM exam_sessions
			 WHERE user_id = $1 AND schedule_id = $2 AND status IN ('completed', 'expired')`,
			p.UserID, p.ScheduleID,
		).Scan(&used)
		if err != nil {
			return nil, pgError("count attempts", err)
		}
		if used >= *p.MaxAttempts {
			return nil, model.ErrAttemptsExceeded
		}
	}

	s := &model.Session{
		ID:               uuid.New(),
		UserID:           p.UserID,
		ExamID:           p.ExamID,
		ScheduleID:       p.ScheduleID,
		Status:           model.SessionStatusStarted,
		StartedAt:        p.Now,
		ExpiresAt:        p.Now.Add(p.Duration),
		Answers:          make(map[uuid.UUID]model.Answer),
		QuestionStatuses: make(map[uuid.UUID]model.QuestionStatus, len(p.QuestionIDs)),
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO exam_sessions (id, user_id, exam_id, schedule_id, attempt_number,
		                            status, started_at, expires_at)
		 SELECT $1, $2, $3, $4, COUNT(*) + 1, $5, $6, $7
		 FROM exam_sessions WHERE user_id = $2 AND schedule_id = $4
		 ON CONFLICT (user_id, schedule_id) WHERE status = 'started' DO NOTHING
		 RETURNING attempt_number`,
		s.ID, s.UserID, s.ExamID, s.ScheduleID, s.Status, s.StartedAt, s.ExpiresAt,
	).Scan(&s.AttemptNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrSessionAlreadyActive
		}
		return nil, pgError("create session", err)
	}

	if len(p.QuestionIDs) > 0 {
		_, err = tx.Exec(ctx,
			`INSERT INTO session_question_statuses (session_id, question_id, status)
			 SELECT $1, q, $3 FROM UNNEST($2::uuid[]) AS q`,
			s.ID, p.QuestionIDs, model.QuestionStatusNotVisited)
		if err != nil {
			return nil, pgError("create question statuses", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, pgError("commit create session", err)
	}

	for _, qid := range p.QuestionIDs {
		s.QuestionStatuses[qid] = model.QuestionStatusNotVisited
	}
	return s, nil
}

// lockUserSchedule serializes session starts and finalizations of one user
// on one schedule until the transaction ends.
func lockUserSchedule(ctx context.Context, tx pgx.Tx, userID int, scheduleID uuid.UUID) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		fmt.Sprintf("exam_session:%d:%s", userID, scheduleID))
	return pgError("lock user schedule", err)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const sessionColumns = `id, user_id, exam_id, schedule_id, attempt_number, status,
	started_at, expires_at, submitted_at`

func scanSession(row rowScanner, s *model.Session) error {
	return row.Scan(&s.ID, &s.UserID, &s.ExamID, &s.ScheduleID, &s.AttemptNumber,
		&s.Status, &s.StartedAt, &s.ExpiresAt, &s.SubmittedAt)
}

// Get loads a session with its answers and question statuses.
func (r *SessionRepository) Get(ctx context.Context, sessionID uuid.UUID) (*model.Session, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, pgError("begin get session", err)
	}
	defer tx.Rollback(ctx)

	s := &model.Session{}
	row := tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, sessionID)
	if err := scanSession(row, s); err != nil {
		return nil, pgError("get session", err)
	}
	if err := loadSessionDetails(ctx, tx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func loadSessionDetails(ctx context.Context, q querier, s *model.Session) error {
	s.Answers = make(map[uuid.UUID]model.Answer)
	s.QuestionStatuses = make(map[uuid.UUID]model.QuestionStatus)

	rows, err := q.Query(ctx,
		`SELECT question_id, value, recorded_at, is_auto_save
		 FROM session_answers WHERE session_id = $1`, s.ID)
	if err != nil {
		return pgError("list answers", err)
	}
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.QuestionID, &a.Value, &a.RecordedAt, &a.IsAutoSave); err != nil {
			rows.Close()
			return pgError("scan answer", err)
		}
		s.Answers[a.QuestionID] = a
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return pgError("list answers", err)
	}

	rows, err = q.Query(ctx,
		`SELECT question_id, status FROM session_question_statuses WHERE session_id = $1`, s.ID)
	if err != nil {
		return pgError("list question statuses", err)
	}
	defer rows.Close()
	for rows.Next() {
		var qid uuid.UUID
		var st model.QuestionStatus
		if err := rows.Scan(&qid, &st); err != nil {
			return pgError("scan question status", err)
		}
		s.QuestionStatuses[qid] = st
	}
	return pgError("list question statuses", rows.Err())
}

// GetActive returns the user's started session for a schedule.
func (r *SessionRepository) GetActive(ctx context.Context, userID int, scheduleID uuid.UUID) (*model.Session, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM exam_sessions
		 WHERE user_id = $1 AND schedule_id = $2 AND status = 'started'`,
		userID, scheduleID,
	).Scan(&id)
	if err != nil {
		return nil, pgError("get active session", err)
	}
	return r.Get(ctx, id)
}

// CountAttempts counts the user's terminal sessions for a schedule.
func (r *SessionRepository) CountAttempts(ctx context.Context, userID int, scheduleID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_sessions
		 WHERE user_id = $1 AND schedule_id = $2 AND status IN ('completed', 'expired')`,
		userID, scheduleID,
	).Scan(&n)
	return n, pgError("count attempts", err)
}

// lockSession reads a session's status and expiry under the given row lock.
func lockSession(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, lock string) (model.SessionStatus, time.Time, error) {
	var status model.SessionStatus
	var expiresAt time.Time
	err := tx.QueryRow(ctx,
		`SELECT status, expires_at FROM exam_sessions WHERE id = $1 `+lock, sessionID,
	).Scan(&status, &expiresAt)
	return status, expiresAt, err
}

// MarkStatus sets the navigation status of one question.
func (r *SessionRepository) MarkStatus(ctx context.Context, sessionID, questionID uuid.UUID, status model.QuestionStatus) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return pgError("begin mark status", err)
	}
	defer tx.Rollback(ctx)

	current, _, err := lockSession(ctx, tx, sessionID, "FOR SHARE")
	if err != nil {
		return pgError("lock session", err)
	}
	if current != model.SessionStatusStarted {
		return model.ErrSessionClosed
	}

	tag, err := tx.Exec(ctx,
		`UPDATE session_question_statuses SET status = $1
		 WHERE session_id = $2 AND question_id = $3`,
		status, sessionID, questionID)
	if err != nil {
		return pgError("mark status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("question %s: %w", questionID, model.ErrNotFound)
	}
	return pgError("commit mark status", tx.Commit(ctx))
}

// RecordAnswer upserts an answer. A write older than the stored one is
// acknowledged without effect, so the newest recorded_at always wins.
func (r *SessionRepository) RecordAnswer(ctx context.Context, sessionID uuid.UUID, a model.Answer, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return pgError("begin record answer", err)
	}
	defer tx.Rollback(ctx)

	status, expiresAt, err := lockSession(ctx, tx, sessionID, "FOR SHARE")
	if err != nil {
		return pgError("lock session", err)
	}
	if status != model.SessionStatusStarted {
		return model.ErrSessionClosed
	}
	if now.After(expiresAt) {
		return model.ErrSessionExpired
	}

	var current model.QuestionStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM session_question_statuses
		 WHERE session_id = $1 AND question_id = $2 FOR UPDATE`,
		sessionID, a.QuestionID,
	).Scan(&current)
	if err != nil {
		return pgError("lock question status", err)
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO session_answers (session_id, question_id, value, recorded_at, is_auto_save)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET value = EXCLUDED.value,
		     recorded_at = EXCLUDED.recorded_at,
		     is_auto_save = EXCLUDED.is_auto_save
		 WHERE session_answers.recorded_at <= EXCLUDED.recorded_at`,
		sessionID, a.QuestionID, a.Value, a.RecordedAt, a.IsAutoSave)
	if err != nil {
		return pgError("upsert answer", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	next := model.NextQuestionStatus(current, a.Value.IsEmpty())
	if next != current {
		if _, err := tx.Exec(ctx,
			`UPDATE session_question_statuses SET status = $1
			 WHERE session_id = $2 AND question_id = $3`,
			next, sessionID, a.QuestionID); err != nil {
			return pgError("update question status", err)
		}
	}
	return pgError("commit record answer", tx.Commit(ctx))
}

// Finalize moves a started session into outcome and stores the result computed
// by score, all inside one transaction holding the (user, schedule) advisory
// lock and the session row lock.
// Finalizing again with the same outcome returns the stored result.
func (r *SessionRepository) Finalize(ctx context.Context, sessionID uuid.UUID, now time.Time, outcome model.SessionStatus, score model.ScoreFunc) (*model.Result, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, pgError("begin finalize", err)
	}
	defer tx.Rollback(ctx)

	// user_id and schedule_id never change, so they can be read before locking.
	var userID int
	var scheduleID uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT user_id, schedule_id FROM exam_sessions WHERE id = $1`, sessionID,
	).Scan(&userID, &scheduleID)
	if err != nil {
		return nil, pgError("get session owner", err)
	}
	if err := lockUserSchedule(ctx, tx, userID, scheduleID); err != nil {
		return nil, err
	}

	s := &model.Session{}
	row := tx.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1 FOR UPDATE`, sessionID)
	if err := scanSession(row, s); err != nil {
		return nil, pgError("lock session", err)
	}

	if s.Status.Terminal() {
		if s.Status != outcome {
			return nil, fmt.Errorf("session %s is %s: %w", sessionID, s.Status, model.ErrAlreadyFinalized)
		}
		return getResult(ctx, tx, sessionID)
	}

	if err := loadSessionDetails(ctx, tx, s); err != nil {
		return nil, err
	}
	s.Status = outcome
	s.SubmittedAt = &now

	result, err := score(s)
	if err != nil {
		return nil, err
	}
	result.CreatedAt = now
	if result.Breakdown == nil {
		result.Breakdown = []model.QuestionResult{}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO session_results (session_id, exam_id, schedule_id, user_id, outcome, state,
		                              obtained_marks, total_marks, percentage, passed,
		                              breakdown, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		result.SessionID, result.ExamID, result.ScheduleID, result.UserID, result.Outcome, result.State,
		result.ObtainedMarks, result.TotalMarks, result.Percentage, result.Passed,
		result.Breakdown, result.CreatedAt)
	if err != nil {
		return nil, pgError("insert result", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE exam_sessions SET status = $1, submitted_at = $2 WHERE id = $3`,
		outcome, now, sessionID)
	if err != nil {
		return nil, pgError("update session status", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, pgError("commit finalize", err)
	}
	return result, nil
}

// GetResult loads the result of a finalized session.
func (r *SessionRepository) GetResult(ctx context.Context, sessionID uuid.UUID) (*model.Result, error) {
	return getResult(ctx, r.pool, sessionID)
}

func getResult(ctx context.Context, q querier, sessionID uuid.UUID) (*model.Result, error) {
	res := &model.Result{}
	err := q.QueryRow(ctx,
		`SELECT session_id, exam_id, schedule_id, user_id, outcome, state, obtained_marks, total_marks,
		        percentage, passed, breakdown, created_at
		 FROM session_results WHERE session_id = $1`, sessionID,
	).Scan(&res.SessionID, &res.ExamID, &res.ScheduleID, &res.UserID, &res.Outcome, &res.State,
		&res.ObtainedMarks, &res.TotalMarks, &res.Percentage, &res.Passed,
		&res.Breakdown, &res.CreatedAt)
	if err != nil {
		return nil, pgError("get result", err)
	}
	return res, nil
}
