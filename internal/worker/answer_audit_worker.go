package worker

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
)

// AnswerAuditStore is the Postgres side of the audit trail.
type AnswerAuditStore interface {
	CopyAnswerAudit(ctx context.Context, events []model.AnswerAuditEvent) error
	InsertAnswerAudit(ctx context.Context, e model.AnswerAuditEvent) error
}

// AnswerAuditWorker moves every recorded answer from the Redis queue into the
// append-only answer_audit table.
type AnswerAuditWorker struct {
	consumer *batchConsumer[model.AnswerAuditEvent]
	log      zerolog.Logger
}

// NewAnswerAuditWorker creates a new AnswerAuditWorker.
func NewAnswerAuditWorker(store AnswerAuditStore, rdb redis.UniversalClient, log zerolog.Logger) *AnswerAuditWorker {
	l := log.With().Str("component", "answer_audit_worker").Logger()
	return &AnswerAuditWorker{
		consumer: newBatchConsumer(rdb, config.WorkerKey.PersistAnswerAuditQueue, auditSink{store}, l),
		log:      l,
	}
}

// Start blocks until ctx is cancelled, then flushes what it holds.
func (w *AnswerAuditWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AnswerAuditWorker started")
	w.consumer.run(ctx)
}

type auditSink struct {
	store AnswerAuditStore
}

func (s auditSink) Bulk(ctx context.Context, batch []model.AnswerAuditEvent) error {
	return s.store.CopyAnswerAudit(ctx, batch)
}

func (s auditSink) One(ctx context.Context, e model.AnswerAuditEvent) error {
	return s.store.InsertAnswerAudit(ctx, e)
}
