package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/validator"
)

// ScheduleAdmin is the schedule administration service.
type ScheduleAdmin interface {
	Create(ctx context.Context, examID uuid.UUID, req *model.CreateScheduleRequest) (*model.Schedule, error)
	Update(ctx context.Context, scheduleID uuid.UUID, req *model.UpdateScheduleRequest) (*model.Schedule, error)
	Cancel(ctx context.Context, scheduleID uuid.UUID) error
}

// ScheduleReader reads schedules fresh from the database.
type ScheduleReader interface {
	GetSchedule(ctx context.Context, scheduleID uuid.UUID) (*model.Schedule, error)
}

// ScheduleHandler handles exam scheduling endpoints.
type ScheduleHandler struct {
	schedules ScheduleAdmin
	reader    ScheduleReader
	log       zerolog.Logger
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(schedules ScheduleAdmin, reader ScheduleReader, log zerolog.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		schedules: schedules,
		reader:    reader,
		log:       log.With().Str("component", "schedule_handler").Logger(),
	}
}

// CreateSchedule godoc
// POST /api/v1/admin/exams/:exam_id/schedules
// A fixed schedule's end is computed from the exam duration and frozen.
func (h *ScheduleHandler) CreateSchedule(c *gin.Context) {
	examID, ok := paramUUID(c, "exam_id")
	if !ok {
		return
	}

	var req model.CreateScheduleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sched, err := h.schedules.Create(c.Request.Context(), examID, &req)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"schedule": sched})
}

// GetSchedule godoc
// GET /api/v1/admin/schedules/:schedule_id
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	scheduleID, ok := paramUUID(c, "schedule_id")
	if !ok {
		return
	}
	sched, err := h.reader.GetSchedule(c.Request.Context(), scheduleID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"schedule": sched})
}

// UpdateSchedule godoc
// PUT /api/v1/admin/schedules/:schedule_id
// Rejected with SCHEDULE_LOCKED once the schedule is inside its edit margin.
func (h *ScheduleHandler) UpdateSchedule(c *gin.Context) {
	scheduleID, ok := paramUUID(c, "schedule_id")
	if !ok {
		return
	}

	var req model.UpdateScheduleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sched, err := h.schedules.Update(c.Request.Context(), scheduleID, &req)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"schedule": sched})
}

// CancelSchedule godoc
// POST /api/v1/admin/schedules/:schedule_id/cancel
// Disables the schedule. Sessions already running are not affected.
func (h *ScheduleHandler) CancelSchedule(c *gin.Context) {
	scheduleID, ok := paramUUID(c, "schedule_id")
	if !ok {
		return
	}
	if err := h.schedules.Cancel(c.Request.Context(), scheduleID); err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": model.ScheduleStatusDisabled})
}
