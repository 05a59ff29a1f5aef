package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/offerhub/offerhub-backend/internal/ledger"
	"github.com/offerhub/offerhub-backend/internal/lifecycle"
	"github.com/offerhub/offerhub-backend/internal/platform/apierr"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// RespondServiceError maps the typed domain errors onto HTTP statuses. Only
// errors no class claims become 500s.
func RespondServiceError(c *gin.Context, log *logger.Logger, err error) {
	var (
		transition *lifecycle.TransitionError
		funds      *ledger.InsufficientFundsError
		validation *ledger.ValidationError
		api        *apierr.Error
	)
	switch {
	case errors.As(err, &api):
		RespondError(c, api.Status, api.Code, err)
	case errors.As(err, &transition):
		RespondError(c, http.StatusConflict, "invalid_transition", err)
	case errors.As(err, &funds):
		RespondError(c, http.StatusUnprocessableEntity, "insufficient_funds", err)
	case errors.As(err, &validation):
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	default:
		log.Error("request failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
