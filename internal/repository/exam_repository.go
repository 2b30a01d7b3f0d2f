package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-session/internal/model"
)

// ExamRepository handles exam, question and schedule data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, title, duration_seconds, cutoff, enable_negative_marking,
	negative_marks, auto_grading, status, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExam(row rowScanner, e *model.Exam) error {
	return row.Scan(&e.ID, &e.Title, &e.DurationSeconds, &e.Settings.Cutoff,
		&e.Settings.EnableNegativeMarking, &e.Settings.NegativeMarks,
		&e.Settings.AutoGrading, &e.Status, &e.UpdatedAt)
}

// GetByID retrieves an exam by its UUID with its settings resolved.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	row := r.pool.QueryRow(ctx, `SELECT `+examColumns+` FROM exams WHERE id = $1`, id)
	if err := scanExam(row, e); err != nil {
		return nil, pgError("get exam", err)
	}
	return e, nil
}

// ListPublished returns all exams with PUBLISHED status.
// Used for cache prewarming on application startup.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams WHERE status = $1 ORDER BY updated_at DESC`,
		model.ExamStatusPublished)
	if err != nil {
		return nil, pgError("list published exams", err)
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := scanExam(rows, &e); err != nil {
			return nil, pgError("scan exam", err)
		}
		exams = append(exams, e)
	}
	return exams, pgError("list published exams", rows.Err())
}

// ListQuestions retrieves all questions of an exam, ordered by order_num.
func (r *ExamRepository) ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, question_type, marks, negative_marks, partial_marking,
		        options, blanks_count, correct_answer, order_num
		 FROM questions WHERE exam_id = $1
		 ORDER BY order_num`, examID,
	)
	if err != nil {
		return nil, pgError("list questions", err)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Type, &q.Marks, &q.NegativeMarks,
			&q.PartialMarking, &q.Options, &q.BlanksCount, &q.CorrectAnswer, &q.OrderNum); err != nil {
			return nil, pgError("scan question", err)
		}
		questions = append(questions, q)
	}
	return questions, pgError("list questions", rows.Err())
}

const scheduleColumns = `id, exam_id, schedule_type, start_at, end_at, grace_period_seconds,
	max_attempts, status, created_at, updated_at`

func scanSchedule(row rowScanner, s *model.Schedule) error {
	return row.Scan(&s.ID, &s.ExamID, &s.Type, &s.StartAt, &s.EndAt,
		&s.GracePeriodSeconds, &s.MaxAttempts, &s.Status, &s.CreatedAt, &s.UpdatedAt)
}

// GetSchedule retrieves a schedule by its UUID.
func (r *ExamRepository) GetSchedule(ctx context.Context, id uuid.UUID) (*model.Schedule, error) {
	s := &model.Schedule{}
	row := r.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM exam_schedules WHERE id = $1`, id)
	if err := scanSchedule(row, s); err != nil {
		return nil, pgError("get schedule", err)
	}
	return s, nil
}

// CreateSchedule inserts a new schedule.
func (r *ExamRepository) CreateSchedule(ctx context.Context, s *model.Schedule) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exam_schedules (exam_id, schedule_type, start_at, end_at,
		                             grace_period_seconds, max_attempts, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		s.ExamID, s.Type, s.StartAt, s.EndAt, s.GracePeriodSeconds, s.MaxAttempts, s.Status,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	return pgError("create schedule", err)
}

// UpdateSchedule rewrites the window and attempt limit of a schedule.
func (r *ExamRepository) UpdateSchedule(ctx context.Context, s *model.Schedule) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE exam_schedules
		 SET start_at = $1, end_at = $2, grace_period_seconds = $3, max_attempts = $4,
		     updated_at = NOW()
		 WHERE id = $5
		 RETURNING updated_at`,
		s.StartAt, s.EndAt, s.GracePeriodSeconds, s.MaxAttempts, s.ID,
	).Scan(&s.UpdatedAt)
	return pgError("update schedule", err)
}

// UpdateScheduleStatus updates a schedule's status.
func (r *ExamRepository) UpdateScheduleStatus(ctx context.Context, id uuid.UUID, status model.ScheduleStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_schedules SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	if err != nil {
		return pgError("update schedule status", err)
	}
	if tag.RowsAffected() == 0 {
		return pgError("update schedule status", pgx.ErrNoRows)
	}
	return nil
}
