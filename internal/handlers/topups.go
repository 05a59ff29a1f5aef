package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/offerhub/offerhub-backend/internal/platform/ctxutil"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
	"github.com/offerhub/offerhub-backend/internal/services"
)

type TopUpHandler struct {
	log    *logger.Logger
	topups services.TopUpService
}

func NewTopUpHandler(log *logger.Logger, topups services.TopUpService) *TopUpHandler {
	return &TopUpHandler{
		log:    log.With("handler", "TopUpHandler"),
		topups: topups,
	}
}

type initiateTopUpRequest struct {
	Currency    string `json:"currency" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	ProviderRef string `json:"provider_ref" binding:"required"`
}

func (h *TopUpHandler) Initiate(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req initiateTopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	topup, err := h.topups.Initiate(c.Request.Context(), services.InitiateTopUpInput{
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
	RespondCreated(c, gin.H{"topup": topup})
}

func (h *TopUpHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_topup_id", err)
		return
	}
	topup, err := h.topups.Get(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, h.log, err)
		return
	}
	RespondOK(c, gin.H{"topup": topup})
}
