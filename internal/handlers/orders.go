package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/offerhub/offerhub-backend/internal/platform/ctxutil"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
	"github.com/offerhub/offerhub-backend/internal/services"
	"github.com/offerhub/offerhub-backend/internal/types"
)

type OrderHandler struct {
	log    *logger.Logger
	orders services.OrderService
}

func NewOrderHandler(log *logger.Logger, orders services.OrderService) *OrderHandler {
	return &OrderHandler{
		log:    log.With("handler", "OrderHandler"),
		orders: orders,
	}
}

type createOrderRequest struct {
	FreelancerID uuid.UUID      `json:"freelancer_id" binding:"required"`
	Currency     string         `json:"currency" binding:"required"`
	Amount       string         `json:"amount" binding:"required"`
	Metadata     map[string]any `json:"metadata"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	order, err := h.orders.Create(c.Request.Context(), services.CreateOrderInput{
		TenantID:     rd.TenantID,
		ClientID:     rd.UserID,
		FreelancerID: req.FreelancerID,
		Currency:     req.Currency,
		Amount:       req.Amount,
		Metadata:     req.Metadata,
	})
	if err != nil {
		RespondServiceError(c, h.log, err)
		return
	}
	RespondCreated(c, gin.H{"order": order})
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	order, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, h.log, err)
		return
	}
	RespondOK(c, gin.H{"order": order})
}

func (h *OrderHandler) List(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	orders, err := h.orders.ListByClient(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondServiceError(c, h.log, err)
		return
	}
	RespondOK(c, gin.H{"orders": orders})
}

func (h *OrderHandler) ReserveFunds(c *gin.Context) {
	h.transition(c, h.orders.ReserveFunds)
}

func (h *OrderHandler) StartEscrow(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	var req struct {
		ProviderRef string `json:"provider_ref" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	order, err := h.orders.StartEscrow(c.Request.Context(), id, req.ProviderRef)
	if err != nil {
		RespondServiceError(c, h.log, err)
		return
	}
	RespondOK(c, gin.H{"order": order})
}

func (h *OrderHandler) MarkEscrowFunding(c *gin.Context) {
	h.transition(c, h.orders.MarkEscrowFunding)
}

func (h *OrderHandler) Start(c *gin.Context) {
	h.transition(c, h.orders.Start)
}

func (h *OrderHandler) RequestRelease(c *gin.Context) {
	h.transition(c, h.orders.RequestRelease)
}

func (h *OrderHandler) Release(c *gin.Context) {
	h.transition(c, h.orders.Release)
}

func (h *OrderHandler) RequestRefund(c *gin.Context) {
	h.transition(c, h.orders.RequestRefund)
}

func (h *OrderHandler) Refund(c *gin.Context) {
	h.transition(c, h.orders.Refund)
}

func (h *OrderHandler) Close(c *gin.Context) {
	h.transition(c, h.orders.Close)
}

func (h *OrderHandler) transition(c *gin.Context, op func(context.Context, uuid.UUID) (*types.Order, error)) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	order, err := op(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, h.log, err)
		return
	}
	RespondOK(c, gin.H{"order": order})
}

func (h *OrderHandler) orderID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_order_id", err)
		return uuid.Nil, false
	}
	return id, true
}
