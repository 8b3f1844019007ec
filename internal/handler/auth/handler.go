package auth

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/careflow-api/internal/handler"
	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/internal/service/identity"
	"github.com/jwalitptl/careflow-api/pkg/auth"
	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
)

// Handler exchanges a directory identity for a bearer token. The
// caller proves itself with the exchange secret shared with the
// identity platform; end-user credential checks happen there, not
// here.
type Handler struct {
	tokens         *auth.Service
	directory      *identity.Service
	exchangeSecret string
}

func NewHandler(tokens *auth.Service, directory *identity.Service, exchangeSecret string) *Handler {
	return &Handler{tokens: tokens, directory: directory, exchangeSecret: exchangeSecret}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/auth/token", h.IssueToken)
}

type tokenRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type tokenResponse struct {
	Token     string      `json:"token"`
	Actor     model.Actor `json:"actor"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (h *Handler) IssueToken(c *gin.Context) {
	if h.exchangeSecret == "" {
		handler.Fail(c, apperrors.NewConfiguration("token exchange"))
		return
	}
	supplied := c.GetHeader("X-Exchange-Secret")
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(h.exchangeSecret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid exchange secret"))
		return
	}

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBinding(c, err)
		return
	}

	user, err := h.directory.Lookup(c.Request.Context(), req.UserID)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	actor := model.Actor{ID: user.ID, Role: user.Role}
	token, err := h.tokens.GenerateToken(actor)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, tokenResponse{
		Token:     token,
		Actor:     actor,
		ExpiresAt: time.Now().UTC().Add(h.tokens.TokenTTL()),
	})
}
