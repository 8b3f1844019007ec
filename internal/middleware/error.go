package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

var kindStatus = map[apperrors.Kind]int{
	apperrors.KindValidation:        http.StatusBadRequest,
	apperrors.KindAuthorization:     http.StatusForbidden,
	apperrors.KindNotFound:          http.StatusNotFound,
	apperrors.KindInvalidTransition: http.StatusConflict,
	apperrors.KindConflict:          http.StatusConflict,
	apperrors.KindConfiguration:     http.StatusServiceUnavailable,
	apperrors.KindUnexpected:        http.StatusInternalServerError,
}

// StatusForKind maps an application error kind to an HTTP status.
func StatusForKind(kind apperrors.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorHandler turns errors attached to the gin context into the JSON
// error envelope. Unexpected errors are logged with their cause; the
// client only ever sees the stable message.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		traceID := c.GetString(ContextRequestID)
		lastErr := c.Errors.Last().Err
		kind := apperrors.KindOf(lastErr)
		status := StatusForKind(kind)

		if kind == apperrors.KindUnexpected {
			log.Error().
				Err(lastErr).
				Str("trace_id", traceID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("request failed")
		}

		message := lastErr.Error()
		if kind == apperrors.KindUnexpected {
			message = "internal server error"
		}

		c.JSON(status, ErrorResponse{
			Code:    status,
			Kind:    string(kind),
			Message: message,
			TraceID: traceID,
		})
	}
}
