package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
)

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID(), ErrorHandler())
	engine.GET("/test", handler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	engine.ServeHTTP(w, req)
	return w
}

func TestErrorHandlerMapsKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", apperrors.NewValidation("bad input"), http.StatusBadRequest},
		{"authorization", apperrors.NewAuthorization("not allowed"), http.StatusForbidden},
		{"not found", apperrors.NewNotFound("consent", errors.New("no rows")), http.StatusNotFound},
		{"invalid transition", apperrors.NewInvalidTransition("invoice", "PAID", "ISSUED"), http.StatusConflict},
		{"conflict", apperrors.NewConflict("stale update"), http.StatusConflict},
		{"configuration", apperrors.NewConfiguration("video calling"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(func(c *gin.Context) {
				_ = c.Error(tt.err)
			})

			assert.Equal(t, tt.status, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Code)
			assert.NotEmpty(t, resp.Message)
			assert.NotEmpty(t, resp.TraceID)
		})
	}
}

func TestErrorHandlerMasksUnexpected(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		_ = c.Error(errors.New("pq: connection reset"))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "internal server error", resp.Message)
	assert.NotContains(t, resp.Message, "pq:")
}

func TestErrorHandlerIgnoresCleanRequests(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDPropagates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextRequestID))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderXRequestID, "trace-123")
	engine.ServeHTTP(w, req)

	assert.Equal(t, "trace-123", w.Body.String())
	assert.Equal(t, "trace-123", w.Header().Get(HeaderXRequestID))
}
