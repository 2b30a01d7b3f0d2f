package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/middleware"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/validator"
	ws "github.com/stemsi/exstem-session/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// AnswerLimiter throttles answer writes per user.
type AnswerLimiter interface {
	Allow(ctx context.Context, userID int) (bool, error)
}

// WSHandler serves the student session stream.
type WSHandler struct {
	sessions SessionService
	limiter  AnswerLimiter
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. limiter may be nil.
func NewWSHandler(sessions SessionService, limiter AnswerLimiter, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		limiter:  limiter,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/student/sessions/:session_id/stream
// Upgrades to WebSocket for autosave, answers, status marks, time checks and submit.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	sessionID, ok := paramUUID(c, "session_id")
	if !ok {
		return
	}

	// Ownership is checked before the upgrade so failures are plain HTTP errors.
	sess, err := h.sessions.Authorize(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	if sess.Status != model.SessionStatusStarted {
		response.Fail(c, http.StatusConflict, response.ErrSessionClosed)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("user_id", claims.UserID).
		Str("session_id", sessionID.String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	// The upgrade hijacks the connection, so the request context no longer
	// tracks the client.
	ctx := context.Background()

	for {
		data, err := ws.ReadMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var env ws.RequestEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			ws.WriteError(conn, response.ErrInvalidPayload)
			continue
		}

		switch env.Action {
		case ws.ActionAutosave, ws.ActionAnswer:
			h.handleAnswer(ctx, conn, claims.UserID, sessionID, env.Action, data)
		case ws.ActionMark:
			h.handleMark(ctx, conn, sessionID, data)
		case ws.ActionTime:
			h.handleTime(ctx, conn, sessionID)
		case ws.ActionSubmit:
			if h.handleSubmit(ctx, conn, wsLog, sessionID) {
				return
			}
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(env.Action)).Msg("Unknown action")
			ws.WriteError(conn, response.ErrInvalidPayload)
		}
	}
}

func (h *WSHandler) handleAnswer(ctx context.Context, conn *websocket.Conn, userID int, sessionID uuid.UUID, action ws.Action, data []byte) {
	var req ws.AnswerRequest
	if err := json.Unmarshal(data, &req); err != nil {
		ws.WriteError(conn, response.ErrInvalidPayload)
		return
	}
	if fields := validator.Struct(&req); fields != nil {
		ws.WriteError(conn, response.ErrValidation)
		return
	}

	if h.limiter != nil {
		allowed, err := h.limiter.Allow(ctx, userID)
		if err == nil && !allowed {
			ws.WriteError(conn, response.ErrRateLimitExceeded)
			return
		}
	}

	record := h.sessions.RecordAnswer
	if action == ws.ActionAutosave {
		record = h.sessions.AutoSave
	}
	if err := record(ctx, sessionID, req.QuestionID, *req.Value); err != nil {
		h.writeErr(conn, err)
		return
	}
	ws.WriteTyped(conn, ws.AckResponse{Event: ws.EventAck, Action: action, QuestionID: req.QuestionID})
}

func (h *WSHandler) handleMark(ctx context.Context, conn *websocket.Conn, sessionID uuid.UUID, data []byte) {
	var req ws.MarkRequest
	if err := json.Unmarshal(data, &req); err != nil {
		ws.WriteError(conn, response.ErrInvalidPayload)
		return
	}
	if fields := validator.Struct(&req); fields != nil {
		ws.WriteError(conn, response.ErrValidation)
		return
	}
	if err := h.sessions.MarkStatus(ctx, sessionID, req.QuestionID, req.Status); err != nil {
		h.writeErr(conn, err)
		return
	}
	ws.WriteTyped(conn, ws.AckResponse{Event: ws.EventAck, Action: ws.ActionMark, QuestionID: req.QuestionID})
}

func (h *WSHandler) handleTime(ctx context.Context, conn *websocket.Conn, sessionID uuid.UUID) {
	remaining, err := h.sessions.TimeRemaining(ctx, sessionID)
	if err != nil {
		h.writeErr(conn, err)
		return
	}
	ws.WriteTyped(conn, ws.TimeResponse{Event: ws.EventTime, RemainingTimeSeconds: remaining.Seconds()})
}

// handleSubmit finalizes the session and reports whether the stream is done.
func (h *WSHandler) handleSubmit(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, sessionID uuid.UUID) bool {
	result, err := h.sessions.Submit(ctx, sessionID, model.SessionStatusCompleted)
	if err != nil {
		if errors.Is(err, model.ErrStoreUnavailable) {
			log.Error().Err(err).Msg("Submit failed")
		}
		h.writeErr(conn, err)
		return false
	}
	ws.WriteTyped(conn, ws.ResultResponse{Event: ws.EventResult, Result: result})
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "submitted"))
	return true
}

func (h *WSHandler) writeErr(conn *websocket.Conn, err error) {
	_, code := errorStatus(err)
	ws.WriteError(conn, code)
}
