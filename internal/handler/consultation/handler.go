package consultation

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/careflow-api/internal/handler"
	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/internal/service/consultation"
	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
)

type Handler struct {
	service *consultation.Service
}

func NewHandler(service *consultation.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	consultations := r.Group("/consultations")
	{
		consultations.POST("", h.Create)
		consultations.GET("/:id", h.Get)
		consultations.POST("/:id/start", h.Start)
		consultations.POST("/:id/complete", h.Complete)
		consultations.POST("/:id/cancel", h.Cancel)
		consultations.POST("/:id/no-show", h.MarkNoShow)
		consultations.POST("/:id/notes", h.AppendNote)
		consultations.POST("/:id/messages", h.AppendMessage)
	}
}

func (h *Handler) Create(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	var req model.CreateConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBinding(c, err)
		return
	}

	created, err := h.service.Create(c.Request.Context(), actor, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, created)
}

func (h *Handler) Get(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	id, err := parseID(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	found, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, found)
}

func (h *Handler) Start(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	id, err := parseID(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	updated, err := h.service.Start(c.Request.Context(), actor, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, updated)
}

func (h *Handler) Complete(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	id, err := parseID(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	var req model.CompleteConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBinding(c, err)
		return
	}

	updated, err := h.service.Complete(c.Request.Context(), actor, id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, updated)
}

type cancelRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

func (h *Handler) Cancel(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	id, err := parseID(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			handler.FailBinding(c, err)
			return
		}
	}

	updated, err := h.service.Cancel(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, updated)
}

func (h *Handler) MarkNoShow(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	id, err := parseID(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	updated, err := h.service.MarkNoShow(c.Request.Context(), actor, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, updated)
}

func (h *Handler) AppendNote(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	id, err := parseID(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	var req model.AppendNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBinding(c, err)
		return
	}

	updated, err := h.service.AppendNote(c.Request.Context(), actor, id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, updated)
}

func (h *Handler) AppendMessage(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	id, err := parseID(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	var req model.AppendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBinding(c, err)
		return
	}

	updated, err := h.service.AppendMessage(c.Request.Context(), actor, id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, updated)
}

func parseID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.NewValidation("invalid consultation ID")
	}
	return id, nil
}
