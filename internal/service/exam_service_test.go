package service

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/model"
)

type fakeExamSource struct {
	exams     map[uuid.UUID]*model.Exam
	questions map[uuid.UUID][]model.Question
	loads     int
}

func (f *fakeExamSource) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	f.loads++
	e, ok := f.exams[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeExamSource) ListPublished(_ context.Context) ([]model.Exam, error) {
	var out []model.Exam
	for _, e := range f.exams {
		if e.Status == model.ExamStatusPublished {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeExamSource) ListQuestions(_ context.Context, examID uuid.UUID) ([]model.Question, error) {
	return f.questions[examID], nil
}

func (f *fakeExamSource) GetSchedule(_ context.Context, _ uuid.UUID) (*model.Schedule, error) {
	return nil, model.ErrNotFound
}

func newExamServiceFixture(t *testing.T) (*ExamService, *fakeExamSource, *miniredis.Miniredis, uuid.UUID) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	examID := uuid.New()
	src := &fakeExamSource{
		exams: map[uuid.UUID]*model.Exam{
			examID: {ID: examID, Title: "Physics", DurationSeconds: 3600, Status: model.ExamStatusPublished},
		},
		questions: map[uuid.UUID][]model.Question{
			examID: {singleChoice(3, "a"), singleChoice(2, "b")},
		},
	}
	return NewExamService(src, rdb, 0, zerolog.Nop()), src, mr, examID
}

func TestExamServiceGetBundleCachesAndDerivesTotal(t *testing.T) {
	svc, src, mr, examID := newExamServiceFixture(t)
	ctx := context.Background()

	b, err := svc.GetBundle(ctx, examID)
	if err != nil {
		t.Fatal(err)
	}
	if b.Exam.TotalMarks != 5 || len(b.Questions) != 2 {
		t.Errorf("bundle total=%v questions=%d", b.Exam.TotalMarks, len(b.Questions))
	}
	if !mr.Exists("exam:" + examID.String() + ":bundle") {
		t.Error("bundle was not cached")
	}

	if _, err := svc.GetBundle(ctx, examID); err != nil {
		t.Fatal(err)
	}
	if src.loads != 1 {
		t.Errorf("source loaded %d times, want 1", src.loads)
	}
}

func TestExamServiceRefreshCacheSeesNewQuestions(t *testing.T) {
	svc, src, _, examID := newExamServiceFixture(t)
	ctx := context.Background()

	if _, err := svc.GetBundle(ctx, examID); err != nil {
		t.Fatal(err)
	}
	src.questions[examID] = append(src.questions[examID], singleChoice(5, "c"))

	if _, err := svc.RefreshCache(ctx, examID); err != nil {
		t.Fatal(err)
	}
	b, err := svc.GetBundle(ctx, examID)
	if err != nil {
		t.Fatal(err)
	}
	if b.Exam.TotalMarks != 10 {
		t.Errorf("total after refresh = %v, want 10", b.Exam.TotalMarks)
	}
}

func TestExamServiceErrors(t *testing.T) {
	svc, src, _, examID := newExamServiceFixture(t)
	ctx := context.Background()

	if _, err := svc.GetBundle(ctx, uuid.New()); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("unknown exam: %v", err)
	}

	src.questions[examID] = nil
	if _, err := svc.RefreshCache(ctx, examID); !errors.Is(err, ErrNoQuestions) {
		t.Errorf("empty exam: %v", err)
	}
}

func TestExamServicePrewarm(t *testing.T) {
	svc, _, mr, examID := newExamServiceFixture(t)
	if err := svc.PrewarmAllCaches(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("exam:" + examID.String() + ":bundle") {
		t.Error("published exam was not prewarmed")
	}
}
