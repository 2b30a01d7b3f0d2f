package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/clock"
	"github.com/stemsi/exstem-session/internal/model"
)

type memScheduleRepo struct {
	exam      *model.Exam
	schedules map[uuid.UUID]*model.Schedule
}

func (m *memScheduleRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	if m.exam == nil || m.exam.ID != id {
		return nil, model.ErrNotFound
	}
	return m.exam, nil
}

func (m *memScheduleRepo) GetSchedule(_ context.Context, id uuid.UUID) (*model.Schedule, error) {
	s, ok := m.schedules[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memScheduleRepo) CreateSchedule(_ context.Context, s *model.Schedule) error {
	s.ID = uuid.New()
	cp := *s
	m.schedules[s.ID] = &cp
	return nil
}

func (m *memScheduleRepo) UpdateSchedule(_ context.Context, s *model.Schedule) error {
	cp := *s
	m.schedules[s.ID] = &cp
	return nil
}

func (m *memScheduleRepo) UpdateScheduleStatus(_ context.Context, id uuid.UUID, status model.ScheduleStatus) error {
	s, ok := m.schedules[id]
	if !ok {
		return model.ErrNotFound
	}
	s.Status = status
	return nil
}

func newScheduleFixture(now time.Time) (*ScheduleService, *memScheduleRepo, *clock.Mock) {
	repo := &memScheduleRepo{
		exam:      &model.Exam{ID: uuid.New(), DurationSeconds: 5400},
		schedules: make(map[uuid.UUID]*model.Schedule),
	}
	clk := clock.NewMock(now)
	return NewScheduleService(repo, NewScheduleValidator(DefaultEditMargin), clk, zerolog.Nop()), repo, clk
}

func TestScheduleServiceCreateFixedFreezesEnd(t *testing.T) {
	now := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	svc, repo, _ := newScheduleFixture(now)
	start := now.Add(time.Hour)
	bogusEnd := start.Add(time.Minute)

	s, err := svc.Create(context.Background(), repo.exam.ID, &model.CreateScheduleRequest{
		ScheduleType:       "fixed",
		StartAt:            start,
		EndAt:              &bogusEnd,
		GracePeriodSeconds: 120,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !s.EndAt.Equal(start.Add(90 * time.Minute)) {
		t.Errorf("EndAt = %v, want start + exam duration", s.EndAt)
	}

	// Changing the exam afterwards does not move the schedule.
	repo.exam.DurationSeconds = 60
	got, _ := repo.GetSchedule(context.Background(), s.ID)
	if !got.EndAt.Equal(start.Add(90 * time.Minute)) {
		t.Errorf("EndAt moved to %v", got.EndAt)
	}
}

func TestScheduleServiceCreateFlexible(t *testing.T) {
	now := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	svc, repo, _ := newScheduleFixture(now)
	start := now.Add(time.Hour)
	end := start.Add(-time.Minute)

	_, err := svc.Create(context.Background(), repo.exam.ID, &model.CreateScheduleRequest{
		ScheduleType: "flexible",
		StartAt:      start,
		EndAt:        &end,
	})
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("Create() = %v, want ErrInvalidWindow", err)
	}
}

func TestScheduleServiceUpdateLockedNearStart(t *testing.T) {
	now := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	svc, repo, clk := newScheduleFixture(now)
	ctx := context.Background()
	s, err := svc.Create(ctx, repo.exam.ID, &model.CreateScheduleRequest{ScheduleType: "fixed", StartAt: now.Add(time.Minute)})
	if err != nil {
		t.Fatal(err)
	}

	newStart := now.Add(2 * time.Hour)
	updated, err := svc.Update(ctx, s.ID, &model.UpdateScheduleRequest{StartAt: &newStart})
	if err != nil {
		t.Fatalf("Update() well before start: %v", err)
	}
	if !updated.EndAt.Equal(newStart.Add(90 * time.Minute)) {
		t.Errorf("fixed EndAt not shifted with start: %v", updated.EndAt)
	}

	clk.Set(newStart.Add(-10 * time.Second))
	if _, err := svc.Update(ctx, s.ID, &model.UpdateScheduleRequest{StartAt: &newStart}); !errors.Is(err, model.ErrScheduleLocked) {
		t.Fatalf("Update() inside margin = %v, want ErrScheduleLocked", err)
	}

	// Cancelling is always allowed.
	clk.Set(newStart.Add(time.Minute))
	if err := svc.Cancel(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	if got, _ := repo.GetSchedule(ctx, s.ID); got.Status != model.ScheduleStatusDisabled {
		t.Errorf("status = %s, want disabled", got.Status)
	}
}
