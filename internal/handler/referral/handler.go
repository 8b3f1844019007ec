package referral

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/careflow-api/internal/handler"
	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/internal/service/referral"
	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
)

type Handler struct {
	service *referral.Service
}

func NewHandler(service *referral.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	referrals := r.Group("/referrals")
	{
		referrals.POST("", h.Create)
		referrals.GET("", h.List)
		referrals.GET("/:id", h.Get)
		referrals.POST("/:id/accept", h.Accept)
		referrals.POST("/:id/reject", h.Reject)
		referrals.POST("/:id/complete", h.Complete)
		referrals.POST("/:id/cancel", h.Cancel)
	}
}

func (h *Handler) Create(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	var req model.CreateReferralRequest
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

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.NewValidation("invalid referral ID"))
		return
	}

	found, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, found)
}

func (h *Handler) List(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	referrals, err := h.service.ListForEntity(c.Request.Context(), actor)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, referrals)
}

func (h *Handler) Accept(c *gin.Context) {
	h.respondWithNotes(c, model.ReferralStatusAccepted)
}

func (h *Handler) Reject(c *gin.Context) {
	h.respondWithNotes(c, model.ReferralStatusRejected)
}

func (h *Handler) respondWithNotes(c *gin.Context, target model.ReferralStatus) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.NewValidation("invalid referral ID"))
		return
	}

	var req model.RespondReferralRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			handler.FailBinding(c, err)
			return
		}
	}

	var updated *model.Referral
	if target == model.ReferralStatusAccepted {
		updated, err = h.service.Accept(c.Request.Context(), actor, id, &req)
	} else {
		updated, err = h.service.Reject(c.Request.Context(), actor, id, &req)
	}
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

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.NewValidation("invalid referral ID"))
		return
	}

	updated, err := h.service.Complete(c.Request.Context(), actor, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, updated)
}

func (h *Handler) Cancel(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Fail(c, apperrors.NewValidation("invalid referral ID"))
		return
	}

	updated, err := h.service.Cancel(c.Request.Context(), actor, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, updated)
}
