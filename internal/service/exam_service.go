package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
)

// ErrNoQuestions is returned for exams that cannot be sat because they have no questions.
var ErrNoQuestions = errors.New("exam has no questions")

// ExamSource is the durable store behind the exam catalog.
type ExamSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListPublished(ctx context.Context) ([]model.Exam, error)
	ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
	GetSchedule(ctx context.Context, id uuid.UUID) (*model.Schedule, error)
}

// ExamService is the exam catalog: exam bundles are served from Redis and
// rebuilt from PostgreSQL on a miss. Schedules always come from PostgreSQL so
// a cancellation is visible immediately.
type ExamService struct {
	source ExamSource
	rdb    redis.UniversalClient
	ttl    time.Duration
	log    zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(source ExamSource, rdb redis.UniversalClient, ttl time.Duration, log zerolog.Logger) *ExamService {
	return &ExamService{
		source: source,
		rdb:    rdb,
		ttl:    ttl,
		log:    log.With().Str("component", "exam_service").Logger(),
	}
}

// GetSchedule retrieves a schedule by its UUID.
func (s *ExamService) GetSchedule(ctx context.Context, scheduleID uuid.UUID) (*model.Schedule, error) {
	return s.source.GetSchedule(ctx, scheduleID)
}

// GetBundle returns the exam with its resolved settings and question set.
func (s *ExamService) GetBundle(ctx context.Context, examID uuid.UUID) (*model.ExamBundle, error) {
	key := config.CacheKey.ExamBundleKey(examID.String())
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var bundle model.ExamBundle
		if err := json.Unmarshal(data, &bundle); err == nil {
			return &bundle, nil
		}
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Corrupt bundle in cache, rebuilding")
	} else if !errors.Is(err, redis.Nil) {
		// Redis trouble: serve from PostgreSQL and skip the write-back.
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Bundle cache read failed")
		return s.loadBundle(ctx, examID)
	}

	// [CACHE MISS] Load from the source of truth and self-heal.
	bundle, err := s.loadBundle(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := s.storeBundle(ctx, bundle); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to cache bundle")
	}
	return bundle, nil
}

func (s *ExamService) loadBundle(ctx context.Context, examID uuid.UUID) (*model.ExamBundle, error) {
	exam, err := s.source.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	questions, err := s.source.ListQuestions(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	exam.TotalMarks = model.TotalMarks(questions)
	return &model.ExamBundle{Exam: *exam, Questions: questions}, nil
}

func (s *ExamService) storeBundle(ctx context.Context, bundle *model.ExamBundle) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}
	key := config.CacheKey.ExamBundleKey(bundle.Exam.ID.String())
	return s.rdb.Set(ctx, key, data, s.ttl).Err()
}

// RefreshCache rebuilds the cached bundle of an exam.
// Called when questions or settings change after publish.
func (s *ExamService) RefreshCache(ctx context.Context, examID uuid.UUID) (*model.ExamBundle, error) {
	bundle, err := s.loadBundle(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := s.storeBundle(ctx, bundle); err != nil {
		return nil, fmt.Errorf("cache to redis: %w", err)
	}
	s.log.Info().Str("exam_id", examID.String()).Int("questions", len(bundle.Questions)).Msg("Cache refreshed")
	return bundle, nil
}

// PrewarmAllCaches loads all published exams into Redis on application startup.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.source.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Info().Msg("No published exams to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(exams)).Msg("Prewarming published exams...")

	warmed := 0
	for i := range exams {
		if _, err := s.RefreshCache(ctx, exams[i].ID); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}
