package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/response"
)

// ExamCache rebuilds cached exam bundles.
type ExamCache interface {
	RefreshCache(ctx context.Context, examID uuid.UUID) (*model.ExamBundle, error)
}

// ExamHandler handles exam catalog endpoints.
type ExamHandler struct {
	cache ExamCache
	log   zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(cache ExamCache, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		cache: cache,
		log:   log.With().Str("component", "exam_handler").Logger(),
	}
}

// RefreshCache godoc
// POST /api/v1/admin/exams/:exam_id/refresh-cache
// Re-caches the exam bundle after its questions or settings changed.
func (h *ExamHandler) RefreshCache(c *gin.Context) {
	examID, ok := paramUUID(c, "exam_id")
	if !ok {
		return
	}
	bundle, err := h.cache.RefreshCache(c.Request.Context(), examID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"exam_id":     examID,
		"questions":   len(bundle.Questions),
		"total_marks": bundle.Exam.TotalMarks,
	})
}
