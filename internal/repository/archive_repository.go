package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-session/internal/model"
)

// ArchiveRepository writes the append-only tables fed by the background workers.
type ArchiveRepository struct {
	pool *pgxpool.Pool
}

// NewArchiveRepository creates a new ArchiveRepository.
func NewArchiveRepository(pool *pgxpool.Pool) *ArchiveRepository {
	return &ArchiveRepository{pool: pool}
}

var answerAuditColumns = []string{"session_id", "exam_id", "user_id", "question_id", "value", "is_auto_save", "recorded_at"}

// CopyAnswerAudit bulk-loads audit events with COPY.
func (r *ArchiveRepository) CopyAnswerAudit(ctx context.Context, events []model.AnswerAuditEvent) error {
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e.Value)
		if err != nil {
			return fmt.Errorf("marshal audit value: %w", err)
		}
		rows = append(rows, []any{e.SessionID, e.ExamID, e.UserID, e.QuestionID, value, e.IsAutoSave, e.RecordedAt})
	}

	_, err := r.pool.CopyFrom(ctx, pgx.Identifier{"answer_audit"}, answerAuditColumns, pgx.CopyFromRows(rows))
	return pgError("copy answer audit", err)
}

// InsertAnswerAudit writes a single audit event.
func (r *ArchiveRepository) InsertAnswerAudit(ctx context.Context, e model.AnswerAuditEvent) error {
	value, err := json.Marshal(e.Value)
	if err != nil {
		return fmt.Errorf("marshal audit value: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO answer_audit (session_id, exam_id, user_id, question_id, value, is_auto_save, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.SessionID, e.ExamID, e.UserID, e.QuestionID, value, e.IsAutoSave, e.RecordedAt,
	)
	return pgError("insert answer audit", err)
}

// ArchiveResults upserts a batch of results in one statement. A session is
// archived once; repeated pushes of the same result are ignored.
func (r *ArchiveRepository) ArchiveResults(ctx context.Context, results []*model.Result) error {
	n := len(results)
	sessionIDs := make([]uuid.UUID, 0, n)
	examIDs := make([]uuid.UUID, 0, n)
	scheduleIDs := make([]uuid.UUID, 0, n)
	userIDs := make([]int, 0, n)
	outcomes := make([]string, 0, n)
	states := make([]string, 0, n)
	obtained := make([]float64, 0, n)
	totals := make([]float64, 0, n)
	percentages := make([]float64, 0, n)
	passed := make([]*bool, 0, n)
	createdAts := make([]time.Time, 0, n)

	for _, res := range results {
		sessionIDs = append(sessionIDs, res.SessionID)
		examIDs = append(examIDs, res.ExamID)
		scheduleIDs = append(scheduleIDs, res.ScheduleID)
		userIDs = append(userIDs, res.UserID)
		outcomes = append(outcomes, string(res.Outcome))
		states = append(states, string(res.State))
		obtained = append(obtained, res.ObtainedMarks)
		totals = append(totals, res.TotalMarks)
		percentages = append(percentages, res.Percentage)
		passed = append(passed, res.Passed)
		createdAts = append(createdAts, res.CreatedAt)
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO result_archive (session_id, exam_id, schedule_id, user_id, outcome, state,
		                             obtained_marks, total_marks, percentage, passed, finalized_at)
		 SELECT * FROM UNNEST($1::uuid[], $2::uuid[], $3::uuid[], $4::int[], $5::text[], $6::text[],
		                      $7::float8[], $8::float8[], $9::float8[], $10::bool[], $11::timestamptz[])
		 ON CONFLICT (session_id) DO NOTHING`,
		sessionIDs, examIDs, scheduleIDs, userIDs, outcomes, states,
		obtained, totals, percentages, passed, createdAts,
	)
	return pgError("archive results", err)
}

// ArchiveResult is the single-row form of ArchiveResults.
func (r *ArchiveRepository) ArchiveResult(ctx context.Context, res *model.Result) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO result_archive (session_id, exam_id, schedule_id, user_id, outcome, state,
		                             obtained_marks, total_marks, percentage, passed, finalized_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (session_id) DO NOTHING`,
		res.SessionID, res.ExamID, res.ScheduleID, res.UserID, string(res.Outcome), string(res.State),
		res.ObtainedMarks, res.TotalMarks, res.Percentage, res.Passed, res.CreatedAt,
	)
	return pgError("archive result", err)
}
