package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ActiveSession is one in-progress session as shown on the live monitor.
type ActiveSession struct {
	SessionID     uuid.UUID `json:"session_id"`
	UserID        int       `json:"user_id"`
	ScheduleID    uuid.UUID `json:"schedule_id"`
	AttemptNumber int       `json:"attempt_number"`
	StartedAt     time.Time `json:"started_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// MonitorRepository provides read-only queries for the live exam monitor.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// ListActiveSessions returns every started session of an exam.
func (r *MonitorRepository) ListActiveSessions(ctx context.Context, examID uuid.UUID) ([]ActiveSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, schedule_id, attempt_number, started_at, expires_at
		 FROM exam_sessions
		 WHERE exam_id = $1 AND status = 'started'
		 ORDER BY started_at`,
		examID,
	)
	if err != nil {
		return nil, pgError("list active sessions", err)
	}
	defer rows.Close()

	var sessions []ActiveSession
	for rows.Next() {
		var s ActiveSession
		if err := rows.Scan(&s.SessionID, &s.UserID, &s.ScheduleID, &s.AttemptNumber, &s.StartedAt, &s.ExpiresAt); err != nil {
			return nil, pgError("scan active session", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, pgError("list active sessions", rows.Err())
}

// GetAnsweredCounts returns the number of non-empty answers of every started
// session of an exam, keyed by session id.
func (r *MonitorRepository) GetAnsweredCounts(ctx context.Context, examID uuid.UUID) (map[uuid.UUID]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.session_id, COUNT(*)
		 FROM session_answers a
		 JOIN exam_sessions s ON s.id = a.session_id
		 WHERE s.exam_id = $1 AND s.status = 'started'
		 GROUP BY a.session_id`,
		examID,
	)
	if err != nil {
		return nil, pgError("answered counts", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int64)
	for rows.Next() {
		var sid uuid.UUID
		var count int64
		if err := rows.Scan(&sid, &count); err != nil {
			return nil, pgError("scan answered count", err)
		}
		counts[sid] = count
	}
	return counts, pgError("answered counts", rows.Err())
}

// GetOutcomeCounts returns how many sessions of an exam ended in each terminal status.
func (r *MonitorRepository) GetOutcomeCounts(ctx context.Context, examID uuid.UUID) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM exam_sessions
		 WHERE exam_id = $1 AND status <> 'started'
		 GROUP BY status`,
		examID,
	)
	if err != nil {
		return nil, pgError("outcome counts", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, pgError("scan outcome count", err)
		}
		counts[status] = count
	}
	return counts, pgError("outcome counts", rows.Err())
}
