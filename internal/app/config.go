package app

import (
	"time"

	"github.com/offerhub/offerhub-backend/internal/platform/envutil"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
)

type Config struct {
	ServiceName   string
	Environment   string
	JWTSecretKey  string
	WebhookSecret string

	IdempotencyProcessingTTL time.Duration
	IdempotencyCompletedTTL  time.Duration
	WebhookTolerance         time.Duration

	EventLogRetain int64
	TrimInterval   time.Duration

	// EscrowFeeBPS is the platform's cut of released escrows in basis
	// points; fees land on the PlatformAccountID balance. Collection is
	// off until a platform account is configured.
	EscrowFeeBPS      int64
	PlatformAccountID string
}

func LoadConfig(log *logger.Logger) Config {
	log.Info("Loading environment variables...")
	return Config{
		ServiceName:   envutil.String("SERVICE_NAME", "offerhub-backend"),
		Environment:   envutil.String("ENVIRONMENT", "development"),
		JWTSecretKey:  envutil.String("JWT_SECRET_KEY", "defaultsecret"),
		WebhookSecret: envutil.String("WEBHOOK_SECRET", "whsec_default"),

		IdempotencyProcessingTTL: envutil.Duration("IDEMPOTENCY_PROCESSING_TTL", 30*time.Second),
		IdempotencyCompletedTTL:  envutil.Duration("IDEMPOTENCY_COMPLETED_TTL", 24*time.Hour),
		WebhookTolerance:         envutil.Duration("WEBHOOK_TOLERANCE", 5*time.Minute),

		EventLogRetain: envutil.Int64("EVENT_LOG_RETAIN", 1000),
		TrimInterval:   envutil.Duration("EVENT_LOG_TRIM_INTERVAL", time.Minute),

		EscrowFeeBPS:      envutil.Int64("ESCROW_FEE_BPS", 250),
		PlatformAccountID: envutil.String("PLATFORM_ACCOUNT_ID", ""),
	}
}
