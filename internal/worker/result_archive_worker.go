package worker

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
)

// ResultArchiveStore is the reporting table finalized results are copied into.
// Writes must be idempotent per session.
type ResultArchiveStore interface {
	ArchiveResults(ctx context.Context, results []*model.Result) error
	ArchiveResult(ctx context.Context, r *model.Result) error
}

// ResultArchiveWorker copies finalized results into result_archive. It serves
// both store backends, so results finalized in Redis still reach Postgres.
type ResultArchiveWorker struct {
	consumer *batchConsumer[*model.Result]
	log      zerolog.Logger
}

// NewResultArchiveWorker creates a new ResultArchiveWorker.
func NewResultArchiveWorker(store ResultArchiveStore, rdb redis.UniversalClient, log zerolog.Logger) *ResultArchiveWorker {
	l := log.With().Str("component", "result_archive_worker").Logger()
	return &ResultArchiveWorker{
		consumer: newBatchConsumer(rdb, config.WorkerKey.PersistResultsQueue, archiveSink{store}, l),
		log:      l,
	}
}

// Start blocks until ctx is cancelled, then flushes what it holds.
func (w *ResultArchiveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultArchiveWorker started")
	w.consumer.run(ctx)
}

type archiveSink struct {
	store ResultArchiveStore
}

func (s archiveSink) Bulk(ctx context.Context, batch []*model.Result) error {
	return s.store.ArchiveResults(ctx, batch)
}

func (s archiveSink) One(ctx context.Context, r *model.Result) error {
	return s.store.ArchiveResult(ctx, r)
}
