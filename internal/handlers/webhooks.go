package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/offerhub/offerhub-backend/internal/platform/logger"
	"github.com/offerhub/offerhub-backend/internal/webhooks"
)

// WebhookHandler terminates provider callbacks. Only a signature failure is
// a 401; every verified delivery gets a 200 so the provider stops retrying,
// with the business outcome in the body.
type WebhookHandler struct {
	log      *logger.Logger
	ingestor *webhooks.Ingestor
}

func NewWebhookHandler(log *logger.Logger, ingestor *webhooks.Ingestor) *WebhookHandler {
	return &WebhookHandler{
		log:      log.With("handler", "WebhookHandler"),
		ingestor: ingestor,
	}
}

func (h *WebhookHandler) HandlePayments(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	payload, err := h.ingestor.Verify(body, c.Request.Header)
	if err != nil {
		var sigErr *webhooks.SignatureError
		if errors.As(err, &sigErr) {
			h.log.Warn("webhook signature rejected", "error", err)
			RespondError(c, http.StatusUnauthorized, "invalid_signature", err)
			return
		}
		RespondError(c, http.StatusBadRequest, "invalid_payload", err)
		return
	}

	res, err := h.ingestor.Process(c.Request.Context(), payload)
	if err != nil {
		// Infrastructure failure: a 5xx tells the provider to retry.
		h.log.Error("webhook processing failed", "event_id", payload.EventID, "error", err)
		RespondError(c, http.StatusInternalServerError, "processing_failed", err)
		return
	}

	resp := gin.H{
		"status":    "ok",
		"processed": res.Processed,
		"duplicate": res.Duplicate,
	}
	if res.Err != nil {
		resp["status"] = "rejected"
		resp["reason"] = res.Err.Error()
	}
	if res.Processed {
		resp["resource_type"] = res.ResourceType
		resp["resource_id"] = res.ResourceID
		resp["new_status"] = res.NewStatus
	}
	RespondOK(c, resp)
}
