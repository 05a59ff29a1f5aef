package app

import (
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/offerhub/offerhub-backend/internal/events/bus"
	"github.com/offerhub/offerhub-backend/internal/events/stream"
	"github.com/offerhub/offerhub-backend/internal/idempotency"
	"github.com/offerhub/offerhub-backend/internal/kv"
	"github.com/offerhub/offerhub-backend/internal/ledger"
	"github.com/offerhub/offerhub-backend/internal/lifecycle"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
	"github.com/offerhub/offerhub-backend/internal/services"
	"github.com/offerhub/offerhub-backend/internal/webhooks"
)

type Services struct {
	Registry *lifecycle.Registry
	Ledger   ledger.Ledger
	Bus      *bus.Bus
	Stream   *stream.Stream
	Guard    *idempotency.Guard
	Ingestor *webhooks.Ingestor

	Order      services.OrderService
	TopUp      services.TopUpService
	Withdrawal services.WithdrawalService
	Dispute    services.DisputeService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, rdb *goredis.Client) (Services, error) {
	log.Info("Wiring services...")

	registry := lifecycle.NewRegistry()
	b := bus.New(log)
	led := ledger.New(db, log, r.Balance)

	eventLog := stream.NewRedisLog(log, rdb, "events")
	s := stream.New(log, b, eventLog, cfg.EventLogRetain)
	s.Start()

	guard := idempotency.NewGuard(log,
		kv.NewRedisStore(rdb, "idem"),
		cfg.IdempotencyProcessingTTL, cfg.IdempotencyCompletedTTL)

	fees := services.SettlementFees{EscrowFeeBPS: cfg.EscrowFeeBPS}
	if cfg.PlatformAccountID != "" {
		platformID, err := uuid.Parse(cfg.PlatformAccountID)
		if err != nil {
			return Services{}, fmt.Errorf("parse PLATFORM_ACCOUNT_ID: %w", err)
		}
		fees.PlatformAccountID = platformID
	}

	orderSvc := services.NewOrderService(db, log, registry, r.Order, r.Escrow, led, b, fees)
	topUpSvc := services.NewTopUpService(log, registry, r.TopUp, led, b)
	withdrawalSvc := services.NewWithdrawalService(log, registry, r.Withdrawal, led, b)
	disputeSvc := services.NewDisputeService(log, registry, r.Dispute, orderSvc, b)

	mapper, err := webhooks.NewStatusMapper()
	if err != nil {
		return Services{}, err
	}
	ingestor := webhooks.NewIngestor(log,
		webhooks.NewVerifier(cfg.WebhookSecret, cfg.WebhookTolerance),
		kv.NewRedisStore(rdb, "webhooks"),
		mapper,
		topUpSvc, withdrawalSvc, orderSvc)

	return Services{
		Registry:   registry,
		Ledger:     led,
		Bus:        b,
		Stream:     s,
		Guard:      guard,
		Ingestor:   ingestor,
		Order:      orderSvc,
		TopUp:      topUpSvc,
		Withdrawal: withdrawalSvc,
		Dispute:    disputeSvc,
	}, nil
}
