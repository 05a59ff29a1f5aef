package app

import (
	"github.com/gin-gonic/gin"

	"github.com/offerhub/offerhub-backend/internal/server"
)

func wireRouter(cfg Config, h Handlers, m Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		ServiceName:           cfg.ServiceName,
		BalanceHandler:        h.Balance,
		OrderHandler:          h.Order,
		TopUpHandler:          h.TopUp,
		WithdrawalHandler:     h.Withdrawal,
		DisputeHandler:        h.Dispute,
		EventStreamHandler:    h.EventStream,
		WebhookHandler:        h.Webhook,
		AuthMiddleware:        m.Auth,
		IdempotencyMiddleware: m.Idempotency,
	})
}
