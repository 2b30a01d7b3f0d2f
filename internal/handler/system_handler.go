package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/response"
)

const healthTimeout = 2 * time.Second

// Pinger is a dependency with a liveness check, such as *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler exposes health and worker queue depth.
type SystemHandler struct {
	db        Pinger
	rdb       redis.UniversalClient
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(db Pinger, rdb redis.UniversalClient, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		db:        db,
		rdb:       rdb,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
// 200 when PostgreSQL and Redis answer, 503 otherwise.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	checks := gin.H{"postgres": "ok", "redis": "ok"}
	status := http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if status != http.StatusOK {
		h.log.Warn().Interface("checks", checks).Msg("Health check failed")
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
}

type systemStatus struct {
	Uptime     string `json:"uptime"`
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`

	// Worker Queues
	QueueAnswerAudit int64 `json:"queue_answer_audit"`
	QueueResults     int64 `json:"queue_results"`
}

// Status godoc
// GET /api/v1/admin/system/status
// Reports runtime stats and the backlog of each worker queue.
func (h *SystemHandler) Status(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := systemStatus{
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  mem.HeapAlloc,
		NumGC:      mem.NumGC,
		GoVersion:  runtime.Version(),
	}

	// ── Worker Queues (pipelined LLEN) ──
	ctx := c.Request.Context()
	pipe := h.rdb.Pipeline()
	auditCmd := pipe.LLen(ctx, config.WorkerKey.PersistAnswerAuditQueue)
	resultsCmd := pipe.LLen(ctx, config.WorkerKey.PersistResultsQueue)
	if _, err := pipe.Exec(ctx); err != nil {
		failWithError(c, h.log, err)
		return
	}
	s.QueueAnswerAudit = auditCmd.Val()
	s.QueueResults = resultsCmd.Val()

	response.Success(c, http.StatusOK, s)
}
