package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
)

const (
	keepAliveInterval = 30 * time.Second
	snapshotTimeout   = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorSnapshotter builds the opening state of the monitor.
type MonitorSnapshotter interface {
	Snapshot(ctx context.Context, examID uuid.UUID) (*service.MonitorSnapshot, error)
}

// MonitorHandler streams session events of an exam to proctors.
type MonitorHandler struct {
	rdb   redis.UniversalClient
	exams BundleSource
	// snapshots is nil when sessions live in Redis; the stream then starts
	// empty and fills from events.
	snapshots MonitorSnapshotter
	log       zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(rdb redis.UniversalClient, exams BundleSource, snapshots MonitorSnapshotter, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		rdb:       rdb,
		exams:     exams,
		snapshots: snapshots,
		log:       log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorExamSSE godoc
// GET /api/v1/admin/exams/:exam_id/monitor
// Sends a snapshot, then forwards session_started / session_submitted /
// session_expired events as they are published.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	examID, ok := paramUUID(c, "exam_id")
	if !ok {
		return
	}
	bundle, err := h.exams.GetBundle(c.Request.Context(), examID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	reqCtx := c.Request.Context()

	// Subscribe before the snapshot so no event falls between the two.
	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.ExamMonitorChannel(examID.String()))
	defer pubsub.Close()
	if _, err := pubsub.Receive(reqCtx); err != nil {
		h.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Monitor subscribe failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStoreUnavailable)
		return
	}
	ch := pubsub.Channel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c, reqCtx, examID, bundle.Exam.Title, len(bundle.Questions))

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	h.log.Info().Str("exam_id", examID.String()).Msg("Admin attached to live monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Admin disconnected from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Forward raw JSON; the payload is already a SessionEvent.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-keepAlive.C:
			c.Writer.Write([]byte(": ping\n\n"))
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) sendSnapshot(c *gin.Context, ctx context.Context, examID uuid.UUID, title string, totalQuestions int) {
	snap := &service.MonitorSnapshot{Active: []service.SessionProgress{}}
	if h.snapshots != nil {
		fetchCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
		defer cancel()
		if s, err := h.snapshots.Snapshot(fetchCtx, examID); err == nil {
			snap = s
		} else {
			h.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to build monitor snapshot")
		}
	}

	c.SSEvent("message", gin.H{
		"type": "snapshot",
		"data": gin.H{
			"exam": gin.H{
				"id":              examID.String(),
				"title":           title,
				"total_questions": totalQuestions,
			},
			"stats": gin.H{
				"total_in_progress": len(snap.Active),
				"total_completed":   snap.Completed,
				"total_expired":     snap.Expired,
			},
			"sessions": snap.Active,
		},
	})
	c.Writer.Flush()
}
