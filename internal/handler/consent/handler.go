package consent

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/careflow-api/internal/handler"
	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/internal/service/consent"
	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
)

type Handler struct {
	service *consent.Service
}

func NewHandler(service *consent.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	consents := r.Group("/consents")
	{
		consents.POST("", h.Request)
		consents.GET("", h.ListForRequester)
		consents.GET("/:id", h.Get)
		consents.POST("/:id/approve", h.Approve)
		consents.POST("/:id/reject", h.Reject)
		consents.POST("/:id/revoke", h.Revoke)
	}
	r.GET("/patients/:id/consents", h.ListForPatient)
}

func (h *Handler) Request(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	var req model.CreateConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBinding(c, err)
		return
	}

	created, err := h.service.Request(c.Request.Context(), actor, &req)
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

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.NewValidation("invalid consent ID"))
		return
	}

	found, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, found)
}

func (h *Handler) Approve(c *gin.Context) {
	h.respond(c, h.service.Approve)
}

func (h *Handler) Reject(c *gin.Context) {
	h.respond(c, h.service.Reject)
}

type respondFn func(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.RespondConsentRequest) (*model.ConsentRequest, error)

func (h *Handler) respond(c *gin.Context, apply respondFn) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.NewValidation("invalid consent ID"))
		return
	}

	// The response body is optional; an empty body means no notes and
	// no validity bound.
	var req model.RespondConsentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			handler.FailBinding(c, err)
			return
		}
	}

	updated, err := apply(c.Request.Context(), actor, id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, updated)
}

func (h *Handler) Revoke(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.NewValidation("invalid consent ID"))
		return
	}

	updated, err := h.service.Revoke(c.Request.Context(), actor, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, updated)
}

func (h *Handler) ListForPatient(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.NewValidation("invalid patient ID"))
		return
	}

	consents, err := h.service.ListForPatient(c.Request.Context(), actor, patientID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, consents)
}

func (h *Handler) ListForRequester(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	consents, err := h.service.ListForRequester(c.Request.Context(), actor)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, consents)
}
