package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-session/internal/repository"
)

// MonitorSource is the read side of the live monitor.
type MonitorSource interface {
	ListActiveSessions(ctx context.Context, examID uuid.UUID) ([]repository.ActiveSession, error)
	GetAnsweredCounts(ctx context.Context, examID uuid.UUID) (map[uuid.UUID]int64, error)
	GetOutcomeCounts(ctx context.Context, examID uuid.UUID) (map[string]int64, error)
}

// MonitorService orchestrates live exam monitoring.
type MonitorService struct {
	source MonitorSource
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(source MonitorSource) *MonitorService {
	return &MonitorService{source: source}
}

// SessionProgress is one active session with its answered count.
type SessionProgress struct {
	repository.ActiveSession
	AnsweredCount int64 `json:"answered_count"`
}

// MonitorSnapshot is the state of an exam at one instant.
type MonitorSnapshot struct {
	Active    []SessionProgress `json:"active"`
	Completed int64             `json:"total_completed"`
	Expired   int64             `json:"total_expired"`
}

// Snapshot gathers active sessions, answered counts and outcome totals
// concurrently. Sessions and counts are required; outcome totals are best-effort.
func (s *MonitorService) Snapshot(ctx context.Context, examID uuid.UUID) (*MonitorSnapshot, error) {
	var (
		active     []repository.ActiveSession
		answered   map[uuid.UUID]int64
		outcomes   map[string]int64
		activeErr  error
		answerErr  error
		outcomeErr error
		wg         sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		active, activeErr = s.source.ListActiveSessions(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		answered, answerErr = s.source.GetAnsweredCounts(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		outcomes, outcomeErr = s.source.GetOutcomeCounts(ctx, examID)
	}()
	wg.Wait()

	if activeErr != nil {
		return nil, activeErr
	}
	if answerErr != nil {
		return nil, answerErr
	}

	snap := &MonitorSnapshot{Active: make([]SessionProgress, 0, len(active))}
	for _, a := range active {
		snap.Active = append(snap.Active, SessionProgress{ActiveSession: a, AnsweredCount: answered[a.SessionID]})
	}
	if outcomeErr == nil {
		snap.Completed = outcomes["completed"]
		snap.Expired = outcomes["expired"]
	}
	return snap, nil
}
