package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/offerhub/offerhub-backend/internal/platform/ctxutil"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
	"github.com/offerhub/offerhub-backend/internal/services"
)

type WithdrawalHandler struct {
	log         *logger.Logger
	withdrawals services.WithdrawalService
}

func NewWithdrawalHandler(log *logger.Logger, withdrawals services.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{
		log:         log.With("handler", "WithdrawalHandler"),
		withdrawals: withdrawals,
	}
}

type requestWithdrawalRequest struct {
	Currency    string `json:"currency" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	ProviderRef string `json:"provider_ref" binding:"required"`
}

func (h *WithdrawalHandler) Request(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req requestWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	w, err := h.withdrawals.Request(c.Request.Context(), services.RequestWithdrawalInput{
		TenantID:    rd.TenantID,
		UserID:      rd.UserID,
		Currency:    req.Currency,
		Amount:      req.Amount,
		ProviderRef: req.ProviderRef,
	})
	if err != nil {
		RespondServiceError(c, h.log, err)
		return
	}
	RespondCreated(c, gin.H{"withdrawal": w})
}

func (h *WithdrawalHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_withdrawal_id", err)
		return
	}
	w, err := h.withdrawals.Get(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, h.log, err)
		return
	}
	RespondOK(c, gin.H{"withdrawal": w})
}

func (h *WithdrawalHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_withdrawal_id", err)
		return
	}
	w, err := h.withdrawals.Cancel(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, h.log, err)
		return
	}
	RespondOK(c, gin.H{"withdrawal": w})
}
