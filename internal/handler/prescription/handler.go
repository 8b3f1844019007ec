package prescription

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/careflow-api/internal/handler"
	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/internal/service/prescription"
	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
)

type Handler struct {
	service *prescription.Service
}

func NewHandler(service *prescription.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	prescriptions := r.Group("/prescriptions")
	{
		prescriptions.POST("", h.Create)
		prescriptions.GET("/:id", h.Get)
		prescriptions.POST("/:id/reassign", h.ReassignPharmacy)
		prescriptions.POST("/:id/fulfill", h.Fulfill)
		prescriptions.POST("/:id/cancel", h.Cancel)
	}
	r.GET("/patients/:id/prescriptions", h.ListForPatient)
}

func (h *Handler) Create(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	var req model.CreatePrescriptionRequest
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

func (h *Handler) ReassignPharmacy(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	id, err := parseID(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	var req model.ReassignPharmacyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBinding(c, err)
		return
	}

	updated, err := h.service.ReassignPharmacy(c.Request.Context(), actor, id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, updated)
}

func (h *Handler) Fulfill(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	id, err := parseID(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	updated, err := h.service.Fulfill(c.Request.Context(), actor, id)
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

	id, err := parseID(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	updated, err := h.service.Cancel(c.Request.Context(), actor, id)
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

	prescriptions, err := h.service.ListForPatient(c.Request.Context(), actor, patientID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, prescriptions)
}

func parseID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.NewValidation("invalid prescription ID")
	}
	return id, nil
}
