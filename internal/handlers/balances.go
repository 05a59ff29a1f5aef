package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/offerhub/offerhub-backend/internal/ledger"
	"github.com/offerhub/offerhub-backend/internal/platform/ctxutil"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
)

type BalanceHandler struct {
	log    *logger.Logger
	ledger ledger.Ledger
}

func NewBalanceHandler(log *logger.Logger, led ledger.Ledger) *BalanceHandler {
	return &BalanceHandler{
		log:    log.With("handler", "BalanceHandler"),
		ledger: led,
	}
}

func (h *BalanceHandler) GetBalance(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	currency := c.DefaultQuery("currency", "USD")
	snap, err := h.ledger.Snapshot(c.Request.Context(), rd.UserID, currency)
	if err != nil {
		RespondServiceError(c, h.log, err)
		return
	}
	RespondOK(c, gin.H{"balance": snap})
}
