package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/clock"
	"github.com/stemsi/exstem-session/internal/model"
)

// ErrInvalidWindow is returned when a schedule would end before it starts.
var ErrInvalidWindow = errors.New("schedule must end after it starts")

// ScheduleRepository persists schedules.
type ScheduleRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	GetSchedule(ctx context.Context, id uuid.UUID) (*model.Schedule, error)
	CreateSchedule(ctx context.Context, s *model.Schedule) error
	UpdateSchedule(ctx context.Context, s *model.Schedule) error
	UpdateScheduleStatus(ctx context.Context, id uuid.UUID, status model.ScheduleStatus) error
}

// ScheduleService handles schedule administration.
type ScheduleService struct {
	repo      ScheduleRepository
	validator *ScheduleValidator
	clock     clock.Clock
	log       zerolog.Logger
}

// NewScheduleService creates a new ScheduleService.
func NewScheduleService(repo ScheduleRepository, validator *ScheduleValidator, clk clock.Clock, log zerolog.Logger) *ScheduleService {
	return &ScheduleService{
		repo:      repo,
		validator: validator,
		clock:     clk,
		log:       log.With().Str("component", "schedule_service").Logger(),
	}
}

// Create schedules an exam. A fixed schedule's end is the start plus the
// exam duration at creation time and never follows later duration changes.
func (s *ScheduleService) Create(ctx context.Context, examID uuid.UUID, req *model.CreateScheduleRequest) (*model.Schedule, error) {
	exam, err := s.repo.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}

	sched := &model.Schedule{
		ExamID:      examID,
		Type:        model.ScheduleType(req.ScheduleType),
		StartAt:     req.StartAt.UTC(),
		MaxAttempts: req.MaxAttempts,
		Status:      model.ScheduleStatusActive,
	}
	switch sched.Type {
	case model.ScheduleTypeFixed:
		sched.EndAt = sched.StartAt.Add(exam.Duration())
		sched.GracePeriodSeconds = req.GracePeriodSeconds
	case model.ScheduleTypeFlexible:
		if req.EndAt == nil {
			return nil, ErrInvalidWindow
		}
		sched.EndAt = req.EndAt.UTC()
	}
	if !sched.EndAt.After(sched.StartAt) {
		return nil, ErrInvalidWindow
	}

	if err := s.repo.CreateSchedule(ctx, sched); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("schedule_id", sched.ID.String()).
		Str("exam_id", examID.String()).
		Str("type", string(sched.Type)).
		Msg("Schedule created")
	return sched, nil
}

// Update edits a schedule that has not yet entered its edit margin.
func (s *ScheduleService) Update(ctx context.Context, scheduleID uuid.UUID, req *model.UpdateScheduleRequest) (*model.Schedule, error) {
	sched, err := s.repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if !s.validator.CanModify(sched, s.clock.Now()) {
		return nil, model.ErrScheduleLocked
	}

	if req.StartAt != nil {
		length := sched.EndAt.Sub(sched.StartAt)
		sched.StartAt = req.StartAt.UTC()
		if sched.Type == model.ScheduleTypeFixed {
			sched.EndAt = sched.StartAt.Add(length)
		}
	}
	if req.EndAt != nil && sched.Type == model.ScheduleTypeFlexible {
		sched.EndAt = req.EndAt.UTC()
	}
	if req.GracePeriodSeconds != nil && sched.Type == model.ScheduleTypeFixed {
		sched.GracePeriodSeconds = *req.GracePeriodSeconds
	}
	if req.MaxAttempts != nil {
		sched.MaxAttempts = req.MaxAttempts
	}
	if !sched.EndAt.After(sched.StartAt) {
		return nil, ErrInvalidWindow
	}

	if err := s.repo.UpdateSchedule(ctx, sched); err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	return sched, nil
}

// Cancel disables a schedule. Allowed at any time; running sessions continue
// until they are submitted or expire.
func (s *ScheduleService) Cancel(ctx context.Context, scheduleID uuid.UUID) error {
	if err := s.repo.UpdateScheduleStatus(ctx, scheduleID, model.ScheduleStatusDisabled); err != nil {
		return err
	}
	s.log.Info().Str("schedule_id", scheduleID.String()).Msg("Schedule cancelled")
	return nil
}
