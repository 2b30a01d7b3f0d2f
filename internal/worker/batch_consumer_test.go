package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
)

type fakeAuditStore struct {
	mu       sync.Mutex
	copied   []model.AnswerAuditEvent
	inserted []model.AnswerAuditEvent
	copyErr  error
	// reject makes InsertAnswerAudit fail for one question.
	reject uuid.UUID
}

func (f *fakeAuditStore) CopyAnswerAudit(_ context.Context, events []model.AnswerAuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.copyErr != nil {
		return f.copyErr
	}
	f.copied = append(f.copied, events...)
	return nil
}

func (f *fakeAuditStore) InsertAnswerAudit(_ context.Context, e model.AnswerAuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.QuestionID == f.reject {
		return errors.New("insert failed")
	}
	f.inserted = append(f.inserted, e)
	return nil
}

func (f *fakeAuditStore) copiedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.copied)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func auditEvent() model.AnswerAuditEvent {
	return model.AnswerAuditEvent{
		SessionID:  uuid.New(),
		ExamID:     uuid.New(),
		UserID:     42,
		QuestionID: uuid.New(),
		Value:      model.AnswerValue{Type: model.QuestionTypeSingleChoice, Choice: "a"},
		RecordedAt: time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestAnswerAuditWorkerFlushesOnShutdown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := &fakeAuditStore{}
	w := NewAnswerAuditWorker(store, rdb, zerolog.Nop())

	queue := config.WorkerKey.PersistAnswerAuditQueue
	for i := 0; i < 3; i++ {
		data, _ := json.Marshal(auditEvent())
		if _, err := mr.RPush(queue, string(data)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := mr.RPush(queue, "{not json"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for mr.Exists(queue) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not stop")
	}

	if got := store.copiedCount(); got != 3 {
		t.Errorf("copied %d events, want 3", got)
	}
}

func TestBatchConsumerFallbackAndRequeue(t *testing.T) {
	mr, rdb := newTestRedis(t)
	good, bad := auditEvent(), auditEvent()
	store := &fakeAuditStore{copyErr: errors.New("copy failed"), reject: bad.QuestionID}

	c := newBatchConsumer(rdb, config.WorkerKey.PersistAnswerAuditQueue, auditSink{store}, zerolog.Nop())
	var slept time.Duration
	c.sleep = func(d time.Duration) { slept += d }

	c.flushSafe(context.Background(), []model.AnswerAuditEvent{good, bad})

	if len(store.inserted) != 1 || store.inserted[0].QuestionID != good.QuestionID {
		t.Errorf("inserted = %+v", store.inserted)
	}
	left, err := mr.List(config.WorkerKey.PersistAnswerAuditQueue)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 {
		t.Fatalf("requeued %d items, want 1", len(left))
	}
	var requeued model.AnswerAuditEvent
	if err := json.Unmarshal([]byte(left[0]), &requeued); err != nil {
		t.Fatal(err)
	}
	if requeued.QuestionID != bad.QuestionID {
		t.Errorf("requeued question %s, want %s", requeued.QuestionID, bad.QuestionID)
	}
	if slept != requeueBackoff {
		t.Errorf("backoff = %v, want %v", slept, requeueBackoff)
	}
}

type fakeArchive struct {
	mu       sync.Mutex
	archived map[uuid.UUID]*model.Result
}

func (f *fakeArchive) ArchiveResults(_ context.Context, results []*model.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range results {
		if _, ok := f.archived[r.SessionID]; !ok {
			f.archived[r.SessionID] = r
		}
	}
	return nil
}

func (f *fakeArchive) ArchiveResult(ctx context.Context, r *model.Result) error {
	return f.ArchiveResults(ctx, []*model.Result{r})
}

func TestResultArchiveWorkerIgnoresDuplicates(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := &fakeArchive{archived: make(map[uuid.UUID]*model.Result)}
	w := NewResultArchiveWorker(store, rdb, zerolog.Nop())

	res := &model.Result{SessionID: uuid.New(), Outcome: model.SessionStatusCompleted, ObtainedMarks: 4}
	data, _ := json.Marshal(res)
	queue := config.WorkerKey.PersistResultsQueue
	for i := 0; i < 2; i++ {
		if _, err := mr.RPush(queue, string(data)); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	deadline := time.Now().Add(5 * time.Second)
	for mr.Exists(queue) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.archived) != 1 || store.archived[res.SessionID].ObtainedMarks != 4 {
		t.Errorf("archived = %+v", store.archived)
	}
}
