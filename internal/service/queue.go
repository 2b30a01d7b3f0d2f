package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
)

// AnswerAuditQueue pushes accepted answer writes to the audit worker's Redis list.
type AnswerAuditQueue struct {
	rdb redis.UniversalClient
}

// NewAnswerAuditQueue creates a new AnswerAuditQueue.
func NewAnswerAuditQueue(rdb redis.UniversalClient) *AnswerAuditQueue {
	return &AnswerAuditQueue{rdb: rdb}
}

// Push enqueues one audit event.
func (q *AnswerAuditQueue) Push(ctx context.Context, e model.AnswerAuditEvent) error {
	return rpushJSON(ctx, q.rdb, config.WorkerKey.PersistAnswerAuditQueue, e)
}

// ResultArchiveQueue pushes finalized results to the archive worker's Redis list.
type ResultArchiveQueue struct {
	rdb redis.UniversalClient
}

// NewResultArchiveQueue creates a new ResultArchiveQueue.
func NewResultArchiveQueue(rdb redis.UniversalClient) *ResultArchiveQueue {
	return &ResultArchiveQueue{rdb: rdb}
}

// Push enqueues one result.
func (q *ResultArchiveQueue) Push(ctx context.Context, r *model.Result) error {
	return rpushJSON(ctx, q.rdb, config.WorkerKey.PersistResultsQueue, r)
}

func rpushJSON(ctx context.Context, rdb redis.UniversalClient, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s item: %w", key, err)
	}
	return rdb.RPush(ctx, key, data).Err()
}

// MonitorPublisher broadcasts session events on the exam's monitor channel.
type MonitorPublisher struct {
	rdb redis.UniversalClient
}

// NewMonitorPublisher creates a new MonitorPublisher.
func NewMonitorPublisher(rdb redis.UniversalClient) *MonitorPublisher {
	return &MonitorPublisher{rdb: rdb}
}

// Publish sends e to every monitor subscribed to its exam.
func (p *MonitorPublisher) Publish(ctx context.Context, e model.SessionEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(e.ExamID.String()), data).Err()
}
