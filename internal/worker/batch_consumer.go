package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis

	shutdownFlushTimeout = 5 * time.Second
	redisErrorBackoff    = 3 * time.Second
	requeueBackoff       = 2 * time.Second
)

// batchSink persists drained queue items. Bulk is the fast path; when it fails
// every item goes through One and only the items One rejects are requeued.
type batchSink[T any] interface {
	Bulk(ctx context.Context, batch []T) error
	One(ctx context.Context, item T) error
}

// batchConsumer drains a Redis list into a sink in batches of BatchSize or
// every BatchTimeout, whichever comes first.
type batchConsumer[T any] struct {
	rdb   redis.UniversalClient
	queue string
	sink  batchSink[T]
	log   zerolog.Logger

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

func newBatchConsumer[T any](rdb redis.UniversalClient, queue string, sink batchSink[T], log zerolog.Logger) *batchConsumer[T] {
	return &batchConsumer[T]{rdb: rdb, queue: queue, sink: sink, log: log, sleep: time.Sleep}
}

func (c *batchConsumer[T]) run(ctx context.Context) {
	buffer := make([]T, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Flush on size or age
		if len(buffer) > 0 && (len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout) {
			c.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlushTime = time.Now()
		}

		// 2. Graceful shutdown
		select {
		case <-ctx.Done():
			c.shutdown(buffer)
			return
		default:
		}

		// 3. BLPop returns immediately if data exists
		result, err := c.rdb.BLPop(ctx, PollTimeout, c.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			c.log.Error().Err(err).Msg("Redis connection error, backing off")
			c.sleep(redisErrorBackoff)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var item T
		if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
			// Malformed JSON can never succeed; drop it.
			c.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}
		buffer = append(buffer, item)
	}
}

// flushSafe attempts the bulk write, then row-by-row, then requeues what is left.
func (c *batchConsumer[T]) flushSafe(ctx context.Context, batch []T) {
	if len(batch) == 0 {
		return
	}
	err := c.sink.Bulk(ctx, batch)
	if err == nil {
		return
	}
	c.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk write failed, attempting row-by-row recovery")

	var requeue []T
	for _, item := range batch {
		if err := c.sink.One(ctx, item); err != nil {
			c.log.Error().Err(err).Msg("Row write failed, requeueing")
			requeue = append(requeue, item)
		}
	}
	if len(requeue) > 0 {
		c.requeue(ctx, requeue)
	}
}

func (c *batchConsumer[T]) requeue(ctx context.Context, items []T) {
	pipe := c.rdb.Pipeline()
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			continue
		}
		pipe.RPush(ctx, c.queue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	c.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	// Avoid thrashing while the database is down.
	c.sleep(requeueBackoff)
}

func (c *batchConsumer[T]) shutdown(buffer []T) {
	c.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
	defer cancel()
	c.flushSafe(ctx, buffer)
}
