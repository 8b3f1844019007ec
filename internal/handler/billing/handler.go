package billing

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/careflow-api/internal/handler"
	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/internal/service/billing"
	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
)

type Handler struct {
	service *billing.Service
}

func NewHandler(service *billing.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	invoices := r.Group("/invoices")
	{
		invoices.POST("", h.CreateInvoice)
		invoices.GET("/:id", h.GetInvoice)
		invoices.POST("/:id/issue", h.IssueInvoice)
		invoices.POST("/:id/cancel", h.CancelInvoice)
	}
	payments := r.Group("/payments")
	{
		payments.POST("/orders", h.CreatePaymentOrder)
	}
}

// RegisterWebhookRoutes mounts the gateway callback endpoints. These
// sit outside the authenticated group; the gateway authenticates with
// its signature, verified at the edge.
func (h *Handler) RegisterWebhookRoutes(r *gin.RouterGroup) {
	webhooks := r.Group("/webhooks/payments")
	{
		webhooks.POST("/confirm", h.ConfirmPayment)
		webhooks.POST("/failed", h.MarkFailed)
		webhooks.POST("/refunded", h.MarkRefunded)
	}
}

func (h *Handler) CreateInvoice(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	var req model.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBinding(c, err)
		return
	}

	created, err := h.service.CreateInvoice(c.Request.Context(), actor, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, created)
}

func (h *Handler) GetInvoice(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	id, err := parseID(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	found, err := h.service.GetInvoice(c.Request.Context(), actor, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, found)
}

func (h *Handler) IssueInvoice(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	id, err := parseID(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	updated, err := h.service.IssueInvoice(c.Request.Context(), actor, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, updated)
}

func (h *Handler) CancelInvoice(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	id, err := parseID(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	updated, err := h.service.CancelInvoice(c.Request.Context(), actor, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, updated)
}

func (h *Handler) CreatePaymentOrder(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	var req model.CreatePaymentOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBinding(c, err)
		return
	}

	order, err := h.service.CreatePaymentOrder(c.Request.Context(), actor, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, order)
}

func (h *Handler) ConfirmPayment(c *gin.Context) {
	var req model.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBinding(c, err)
		return
	}

	payment, err := h.service.ConfirmPayment(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, payment)
}

type failedPaymentRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	Reason  string `json:"reason" binding:"omitempty,max=500"`
}

func (h *Handler) MarkFailed(c *gin.Context) {
	var req failedPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBinding(c, err)
		return
	}

	payment, err := h.service.MarkFailed(c.Request.Context(), req.OrderID, req.Reason)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, payment)
}

type refundedPaymentRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

func (h *Handler) MarkRefunded(c *gin.Context) {
	var req refundedPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBinding(c, err)
		return
	}

	payment, err := h.service.MarkRefunded(c.Request.Context(), req.OrderID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, payment)
}

func parseID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.NewValidation("invalid invoice ID")
	}
	return id, nil
}
