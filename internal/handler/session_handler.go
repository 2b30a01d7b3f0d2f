package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/middleware"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/validator"
)

// SessionService is the session lifecycle as used by the student endpoints.
type SessionService interface {
	Start(ctx context.Context, userID int, examID, scheduleID uuid.UUID) (*model.Session, error)
	Authorize(ctx context.Context, sessionID uuid.UUID, userID int) (*model.Session, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*model.SessionState, error)
	RecordAnswer(ctx context.Context, sessionID, questionID uuid.UUID, value model.AnswerValue) error
	AutoSave(ctx context.Context, sessionID, questionID uuid.UUID, value model.AnswerValue) error
	MarkStatus(ctx context.Context, sessionID, questionID uuid.UUID, status model.QuestionStatus) error
	TimeRemaining(ctx context.Context, sessionID uuid.UUID) (time.Duration, error)
	Submit(ctx context.Context, sessionID uuid.UUID, outcome model.SessionStatus) (*model.Result, error)
	GetResult(ctx context.Context, sessionID uuid.UUID) (*model.Result, error)
}

// BundleSource yields cached exam bundles.
type BundleSource interface {
	GetBundle(ctx context.Context, examID uuid.UUID) (*model.ExamBundle, error)
}

// SessionHandler handles the student exam-taking endpoints.
type SessionHandler struct {
	sessions SessionService
	exams    BundleSource
	log      zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions SessionService, exams BundleSource, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		exams:    exams,
		log:      log.With().Str("component", "session_handler").Logger(),
	}
}

// StartSession godoc
// POST /api/v1/student/exams/:exam_id/schedules/:schedule_id/sessions
// Opens a new attempt. At most one session per schedule is active at a time.
func (h *SessionHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := paramUUID(c, "exam_id")
	if !ok {
		return
	}
	scheduleID, ok := paramUUID(c, "schedule_id")
	if !ok {
		return
	}

	sess, err := h.sessions.Start(c.Request.Context(), claims.UserID, examID, scheduleID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	state, err := h.sessions.GetSession(c.Request.Context(), sess.ID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"session": state})
}

// authorize resolves :session_id and checks the caller owns it.
func (h *SessionHandler) authorize(c *gin.Context) (*model.Session, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}
	sessionID, ok := paramUUID(c, "session_id")
	if !ok {
		return nil, false
	}
	sess, err := h.sessions.Authorize(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failWithError(c, h.log, err)
		return nil, false
	}
	return sess, true
}

// GetSession godoc
// GET /api/v1/student/sessions/:session_id
// Returns answers, question statuses and remaining time, for resuming after a reload.
func (h *SessionHandler) GetSession(c *gin.Context) {
	sess, ok := h.authorize(c)
	if !ok {
		return
	}
	state, err := h.sessions.GetSession(c.Request.Context(), sess.ID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": state})
}

// GetPaper godoc
// GET /api/v1/student/sessions/:session_id/paper
// Returns the questions of the session's exam without answer keys.
func (h *SessionHandler) GetPaper(c *gin.Context) {
	sess, ok := h.authorize(c)
	if !ok {
		return
	}
	bundle, err := h.exams.GetBundle(c.Request.Context(), sess.ExamID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"exam": gin.H{
			"id":               bundle.Exam.ID,
			"title":            bundle.Exam.Title,
			"duration_seconds": bundle.Exam.DurationSeconds,
			"total_marks":      bundle.Exam.TotalMarks,
		},
		"questions": bundle.Paper(),
	})
}

// RecordAnswer godoc
// PUT /api/v1/student/sessions/:session_id/answers/:question_id
// Stores an answer. Writes older than the stored one are acknowledged and ignored.
func (h *SessionHandler) RecordAnswer(c *gin.Context) {
	sess, ok := h.authorize(c)
	if !ok {
		return
	}
	questionID, ok := paramUUID(c, "question_id")
	if !ok {
		return
	}

	var req model.RecordAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	record := h.sessions.RecordAnswer
	if req.IsAutoSave {
		record = h.sessions.AutoSave
	}
	if err := record(c.Request.Context(), sess.ID, questionID, *req.Value); err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question_id": questionID, "saved": true})
}

// MarkStatus godoc
// PUT /api/v1/student/sessions/:session_id/questions/:question_id/status
func (h *SessionHandler) MarkStatus(c *gin.Context) {
	sess, ok := h.authorize(c)
	if !ok {
		return
	}
	questionID, ok := paramUUID(c, "question_id")
	if !ok {
		return
	}

	var req model.MarkStatusRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessions.MarkStatus(c.Request.Context(), sess.ID, questionID, model.QuestionStatus(req.Status)); err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question_id": questionID, "status": req.Status})
}

// TimeRemaining godoc
// GET /api/v1/student/sessions/:session_id/time-remaining
func (h *SessionHandler) TimeRemaining(c *gin.Context) {
	sess, ok := h.authorize(c)
	if !ok {
		return
	}
	remaining, err := h.sessions.TimeRemaining(c.Request.Context(), sess.ID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"remaining_time_seconds": remaining.Seconds()})
}

// Submit godoc
// POST /api/v1/student/sessions/:session_id/submit
// Finalizes the session as completed and returns the result. Repeating the
// call returns the same result.
func (h *SessionHandler) Submit(c *gin.Context) {
	sess, ok := h.authorize(c)
	if !ok {
		return
	}
	result, err := h.sessions.Submit(c.Request.Context(), sess.ID, model.SessionStatusCompleted)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// GetResult godoc
// GET /api/v1/student/sessions/:session_id/result
func (h *SessionHandler) GetResult(c *gin.Context) {
	sess, ok := h.authorize(c)
	if !ok {
		return
	}
	result, err := h.sessions.GetResult(c.Request.Context(), sess.ID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": result})
}
