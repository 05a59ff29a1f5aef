package app

import (
	"github.com/offerhub/offerhub-backend/internal/handlers"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
)

type Handlers struct {
	Balance     *handlers.BalanceHandler
	Order       *handlers.OrderHandler
	TopUp       *handlers.TopUpHandler
	Withdrawal  *handlers.WithdrawalHandler
	Dispute     *handlers.DisputeHandler
	EventStream *handlers.EventStreamHandler
	Webhook     *handlers.WebhookHandler
}

func wireHandlers(log *logger.Logger, s Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Balance:     handlers.NewBalanceHandler(log, s.Ledger),
		Order:       handlers.NewOrderHandler(log, s.Order),
		TopUp:       handlers.NewTopUpHandler(log, s.TopUp),
		Withdrawal:  handlers.NewWithdrawalHandler(log, s.Withdrawal),
		Dispute:     handlers.NewDisputeHandler(log, s.Dispute),
		EventStream: handlers.NewEventStreamHandler(log, s.Stream),
		Webhook:     handlers.NewWebhookHandler(log, s.Ingestor),
	}
}
