package app

import (
	"github.com/offerhub/offerhub-backend/internal/middleware"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
)

type Middleware struct {
	Auth        *middleware.AuthMiddleware
	Idempotency *middleware.IdempotencyMiddleware
}

func wireMiddleware(log *logger.Logger, cfg Config, s Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth:        middleware.NewAuthMiddleware(log, cfg.JWTSecretKey),
		Idempotency: middleware.NewIdempotencyMiddleware(log, s.Guard),
	}
}
