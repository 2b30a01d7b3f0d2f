package websocket

import (
	"github.com/google/uuid"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/response"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionAnswer   Action = "answer"
	ActionMark     Action = "mark"
	ActionTime     Action = "time"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest carries one answer for the autosave and answer actions.
type AnswerRequest struct {
	Action     Action             `json:"action"`
	QuestionID uuid.UUID          `json:"question_id" binding:"required"`
	Value      *model.AnswerValue `json:"value" binding:"required"`
}

// MarkRequest syncs a question's navigation status.
type MarkRequest struct {
	Action     Action               `json:"action"`
	QuestionID uuid.UUID            `json:"question_id" binding:"required"`
	Status     model.QuestionStatus `json:"status" binding:"required,oneof=not_visited not_answered answered marked_for_review answered_mark_for_review"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventAck    Event = "ack"
	EventTime   Event = "time"
	EventResult Event = "result"
	EventError  Event = "error"
	EventPong   Event = "pong"
)

// AckResponse confirms an answer or status write.
type AckResponse struct {
	Event      Event     `json:"event"`
	Action     Action    `json:"action"`
	QuestionID uuid.UUID `json:"question_id"`
}

// TimeResponse reports the remaining time of the session.
type TimeResponse struct {
	Event                Event   `json:"event"`
	RemainingTimeSeconds float64 `json:"remaining_time_seconds"`
}

// ResultResponse is sent once the session is finalized.
type ResultResponse struct {
	Event  Event         `json:"event"`
	Result *model.Result `json:"result"`
}

type ErrorResponse struct {
	Event   Event            `json:"event"`
	Code    response.ErrCode `json:"code"`
	Message string           `json:"message"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
