package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/offerhub/offerhub-backend/internal/platform/ctxutil"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
	"github.com/offerhub/offerhub-backend/internal/services"
	"github.com/offerhub/offerhub-backend/internal/types"
)

type DisputeHandler struct {
	log      *logger.Logger
	disputes services.DisputeService
}

func NewDisputeHandler(log *logger.Logger, disputes services.DisputeService) *DisputeHandler {
	return &DisputeHandler{
		log:      log.With("handler", "DisputeHandler"),
		disputes: disputes,
	}
}

type openDisputeRequest struct {
	OrderID  uuid.UUID      `json:"order_id" binding:"required"`
	Reason   string         `json:"reason" binding:"required"`
	Evidence map[string]any `json:"evidence"`
}

func (h *DisputeHandler) Open(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req openDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dispute, err := h.disputes.Open(c.Request.Context(), services.OpenDisputeInput{
		TenantID:   rd.TenantID,
		OrderID:    req.OrderID,
		RaisedByID: rd.UserID,
		Reason:     req.Reason,
		Evidence:   req.Evidence,
	})
	if err != nil {
		RespondServiceError(c, h.log, err)
		return
	}
	RespondCreated(c, gin.H{"dispute": dispute})
}

func (h *DisputeHandler) Get(c *gin.Context) {
	id, ok := h.disputeID(c)
	if !ok {
		return
	}
	dispute, err := h.disputes.Get(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, h.log, err)
		return
	}
	RespondOK(c, gin.H{"dispute": dispute})
}

func (h *DisputeHandler) Review(c *gin.Context) {
	id, ok := h.disputeID(c)
	if !ok {
		return
	}
	dispute, err := h.disputes.Review(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, h.log, err)
		return
	}
	RespondOK(c, gin.H{"dispute": dispute})
}

func (h *DisputeHandler) Withdraw(c *gin.Context) {
	id, ok := h.disputeID(c)
	if !ok {
		return
	}
	dispute, err := h.disputes.Withdraw(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, h.log, err)
		return
	}
	RespondOK(c, gin.H{"dispute": dispute})
}

type resolveDisputeRequest struct {
	Outcome string `json:"outcome" binding:"required"`
}

func (h *DisputeHandler) Resolve(c *gin.Context) {
	id, ok := h.disputeID(c)
	if !ok {
		return
	}
	var req resolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	switch req.Outcome {
	case types.DisputeStatusResolvedClient, types.DisputeStatusResolvedFreelancer, types.DisputeStatusResolvedSplit:
	default:
		RespondError(c, http.StatusBadRequest, "invalid_outcome", nil)
		return
	}
	dispute, err := h.disputes.Resolve(c.Request.Context(), id, req.Outcome)
	if err != nil {
		RespondServiceError(c, h.log, err)
		return
	}
	RespondOK(c, gin.H{"dispute": dispute})
}

func (h *DisputeHandler) disputeID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_dispute_id", err)
		return uuid.Nil, false
	}
	return id, true
}
