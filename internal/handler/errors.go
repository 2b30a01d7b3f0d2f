package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
)

// errorStatus maps a domain error onto its HTTP status and API code.
func errorStatus(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, model.ErrScheduleDisabled):
		return http.StatusForbidden, response.ErrScheduleDisabled
	case errors.Is(err, model.ErrOutsideWindow):
		return http.StatusForbidden, response.ErrOutsideWindow
	case errors.Is(err, model.ErrAttemptsExceeded):
		return http.StatusForbidden, response.ErrAttemptsExceeded
	case errors.Is(err, model.ErrSessionAlreadyActive):
		return http.StatusConflict, response.ErrSessionActive
	case errors.Is(err, model.ErrSessionExpired):
		return http.StatusGone, response.ErrSessionExpired
	case errors.Is(err, model.ErrSessionClosed):
		return http.StatusConflict, response.ErrSessionClosed
	case errors.Is(err, model.ErrScheduleLocked):
		return http.StatusConflict, response.ErrScheduleLocked
	case errors.Is(err, model.ErrInvalidAnswerShape):
		return http.StatusUnprocessableEntity, response.ErrInvalidAnswer
	case errors.Is(err, model.ErrNotReady):
		return http.StatusConflict, response.ErrResultNotReady
	case errors.Is(err, model.ErrAlreadyFinalized):
		return http.StatusInternalServerError, response.ErrAlreadyFinalized
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrNotSessionOwner):
		return http.StatusForbidden, response.ErrForbidden
	case errors.Is(err, service.ErrNoQuestions):
		return http.StatusUnprocessableEntity, response.ErrNoQuestions
	case errors.Is(err, service.ErrInvalidWindow):
		return http.StatusUnprocessableEntity, response.ErrInvalidWindow
	case errors.Is(err, model.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, response.ErrStoreUnavailable
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// failWithError writes the error envelope for err. Server-side failures are
// logged; policy denials are not.
func failWithError(c *gin.Context, log zerolog.Logger, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.Fail(c, status, code)
}

// paramUUID parses a UUID path parameter, writing INVALID_ID on failure.
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
