package gateway

import (
	"context"
	"errors"
	"ito/internal/domain"
	"net/http"

	"github.com/gin-gonic/gin"
)

var (
	ErrMissingPlayerStr        = "missing-player-id"
	ErrInvalidRequestFormatStr = "bad-request-format"
	ErrServerTimeoutStr        = "server-timeout"
	ErrUnknownStr              = "unknown-error"
	ErrRateLimitedStr          = "rate-limited"
)

type errorStatus struct {
	err    error
	status int
}

// Specific errors come before the class they wrap, so the body carries the
// most precise message.
var errorStatuses = []errorStatus{
	{domain.ErrRoomNotFound, http.StatusNotFound},
	{domain.ErrPlayerNotFound, http.StatusNotFound},
	{domain.ErrTopicNotFound, http.StatusNotFound},
	{domain.ErrCardNotHeld, http.StatusNotFound},
	{domain.ErrNotPlaced, http.StatusNotFound},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrRoomAlreadyExists, http.StatusConflict},
	{domain.ErrTopicAlreadyExists, http.StatusConflict},
	{domain.ErrAlreadyExists, http.StatusConflict},
	{domain.ErrNotHost, http.StatusForbidden},
	{domain.ErrForeignToken, http.StatusForbidden},
	{domain.ErrUnauthorized, http.StatusForbidden},
	{domain.ErrDeckExhausted, http.StatusUnprocessableEntity},
	{domain.ErrExhausted, http.StatusUnprocessableEntity},
	{domain.ErrWrongPhase, http.StatusConflict},
	{domain.ErrTopicAlreadyChosen, http.StatusConflict},
	{domain.ErrAlreadyPlaced, http.StatusConflict},
	{domain.ErrInvalidIndex, http.StatusBadRequest},
	{domain.ErrInvalidLevel, http.StatusBadRequest},
	{domain.ErrInvalidTitle, http.StatusBadRequest},
	{domain.ErrInvalidTiebreak, http.StatusBadRequest},
	{domain.ErrNotEnoughPlayers, http.StatusBadRequest},
	{domain.ErrInvalidPath, http.StatusBadRequest},
	{domain.ErrStore, http.StatusServiceUnavailable},
}

// statusOf maps an engine error to its HTTP status and response body.
func statusOf(err error) (int, string) {
	for _, es := range errorStatuses {
		if errors.Is(err, es.err) {
			return es.status, es.err.Error()
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrServerTimeoutStr
	case errors.Is(err, context.Canceled):
		return 499, ""
	}
	return http.StatusInternalServerError, ErrUnknownStr
}

func (h *Handler) abortWithError(ctx *gin.Context, err error) {
	status, body := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("room_id", ctx.Param("roomId")).
			Str("player_id", ctx.GetString(playerKey)).
			Str("route", ctx.FullPath()).
			Msg("request failed")
	}
	if body == "" {
		ctx.Status(status)
	} else {
		ctx.String(status, body)
	}
	ctx.Abort()
}
