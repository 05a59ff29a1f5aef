package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/offerhub/offerhub-backend/internal/handlers"
	"github.com/offerhub/offerhub-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName string

	BalanceHandler     *handlers.BalanceHandler
	OrderHandler       *handlers.OrderHandler
	TopUpHandler       *handlers.TopUpHandler
	WithdrawalHandler  *handlers.WithdrawalHandler
	DisputeHandler     *handlers.DisputeHandler
	EventStreamHandler *handlers.EventStreamHandler
	WebhookHandler     *handlers.WebhookHandler

	AuthMiddleware        *middleware.AuthMiddleware
	IdempotencyMiddleware *middleware.IdempotencyMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(cfg.ServiceName))

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "Idempotency-Key"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	// Webhook auth is the HMAC signature, not a bearer token.
	router.POST("/api/webhooks/payments", cfg.WebhookHandler.HandlePayments)

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())
	idem := cfg.IdempotencyMiddleware.Guard()

	// Balance
	api.GET("/balance", cfg.BalanceHandler.GetBalance)

	// Events
	api.GET("/events/stream", cfg.EventStreamHandler.Stream)

	// Orders
	api.POST("/orders", idem, cfg.OrderHandler.Create)
	api.GET("/orders", cfg.OrderHandler.List)
	api.GET("/orders/:id", cfg.OrderHandler.Get)
	api.POST("/orders/:id/reserve", idem, cfg.OrderHandler.ReserveFunds)
	api.POST("/orders/:id/escrow", idem, cfg.OrderHandler.StartEscrow)
	api.POST("/orders/:id/escrow/funding", idem, cfg.OrderHandler.MarkEscrowFunding)
	api.POST("/orders/:id/start", idem, cfg.OrderHandler.Start)
	api.POST("/orders/:id/release/request", idem, cfg.OrderHandler.RequestRelease)
	api.POST("/orders/:id/release", idem, cfg.OrderHandler.Release)
	api.POST("/orders/:id/refund/request", idem, cfg.OrderHandler.RequestRefund)
	api.POST("/orders/:id/refund", idem, cfg.OrderHandler.Refund)
	api.POST("/orders/:id/close", idem, cfg.OrderHandler.Close)

	// Top-ups
	api.POST("/topups", idem, cfg.TopUpHandler.Initiate)
	api.GET("/topups/:id", cfg.TopUpHandler.Get)

	// Withdrawals
	api.POST("/withdrawals", idem, cfg.WithdrawalHandler.Request)
	api.GET("/withdrawals/:id", cfg.WithdrawalHandler.Get)
	api.POST("/withdrawals/:id/cancel", idem, cfg.WithdrawalHandler.Cancel)

	// Disputes
	api.POST("/disputes", idem, cfg.DisputeHandler.Open)
	api.GET("/disputes/:id", cfg.DisputeHandler.Get)
	api.POST("/disputes/:id/review", idem, cfg.DisputeHandler.Review)
	api.POST("/disputes/:id/withdraw", idem, cfg.DisputeHandler.Withdraw)
	api.POST("/disputes/:id/resolve", idem, cfg.DisputeHandler.Resolve)

	return router
}
