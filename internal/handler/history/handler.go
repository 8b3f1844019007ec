package history

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/careflow-api/internal/handler"
	"github.com/jwalitptl/careflow-api/internal/service/history"
	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
)

type Handler struct {
	service *history.Service
}

func NewHandler(service *history.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/patients/:id/timeline", h.Timeline)
}

func (h *Handler) Timeline(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.NewValidation("invalid patient ID"))
		return
	}

	entries, err := h.service.Timeline(c.Request.Context(), actor, patientID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, entries)
}
