package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/offerhub/offerhub-backend/internal/events"
	"github.com/offerhub/offerhub-backend/internal/events/bus"
	"github.com/offerhub/offerhub-backend/internal/ledger"
	"github.com/offerhub/offerhub-backend/internal/lifecycle"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
	"github.com/offerhub/offerhub-backend/internal/repos"
	"github.com/offerhub/offerhub-backend/internal/types"
)

type InitiateTopUpInput struct {
	TenantID    string
	UserID      uuid.UUID
	Currency    string
	Amount      string
	ProviderRef string
}

// TopUpService tracks inbound payments. The user's balance is only credited
// once the provider confirms success; a failed or expired top-up never
// touches the ledger.
type TopUpService interface {
	Initiate(ctx context.Context, in InitiateTopUpInput) (*types.TopUp, error)
	Get(ctx context.Context, id uuid.UUID) (*types.TopUp, error)
	Expire(ctx context.Context, id uuid.UUID) (*types.TopUp, error)
	HandleProviderStatus(ctx context.Context, providerRef, status string) (*types.TopUp, error)
}

type topUpService struct {
	log      *logger.Logger
	registry *lifecycle.Registry
	topups   repos.TopUpRepo
	ledger   ledger.Ledger
	bus      *bus.Bus
}

func NewTopUpService(
	baseLog *logger.Logger,
	registry *lifecycle.Registry,
	topups repos.TopUpRepo,
	led ledger.Ledger,
	b *bus.Bus,
) TopUpService {
	return &topUpService{
		log:      baseLog.With("service", "TopUpService"),
		registry: registry,
		topups:   topups,
		ledger:   led,
		bus:      b,
	}
}

func (s *topUpService) Initiate(ctx context.Context, in InitiateTopUpInput) (*types.TopUp, error) {
	if err := ledger.ValidateAmount(in.Amount); err != nil {
		return nil, err
	}
	if in.UserID == uuid.Nil {
		return nil, &ledger.ValidationError{Field: "user_id", Value: in.UserID.String(), Reason: "required"}
	}
	if in.Currency == "" {
		return nil, &ledger.ValidationError{Field: "currency", Value: in.Currency, Reason: "required"}
	}
	if in.ProviderRef == "" {
		return nil, &ledger.ValidationError{Field: "provider_ref", Value: in.ProviderRef, Reason: "required"}
	}

	topup := &types.TopUp{
		TenantID:    in.TenantID,
		UserID:      in.UserID,
		Currency:    in.Currency,
		Amount:      in.Amount,
		Status:      types.TopUpStatusPending,
		ProviderRef: in.ProviderRef,
	}
	if err := s.topups.Create(ctx, nil, topup); err != nil {
		return nil, err
	}
	s.emitTopUp(ctx, events.TypeTopUpInitiated, topup)
	return topup, nil
}

func (s *topUpService) Get(ctx context.Context, id uuid.UUID) (*types.TopUp, error) {
	return s.topups.GetByID(ctx, nil, id)
}

// Expire abandons a pending top-up the provider never confirmed.
func (s *topUpService) Expire(ctx context.Context, id uuid.UUID) (*types.TopUp, error) {
	topup, err := s.topups.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if err := s.assert(topup, types.TopUpStatusExpired); err != nil {
		return nil, err
	}
	topup.Status = types.TopUpStatusExpired
	if err := s.topups.Save(ctx, nil, topup); err != nil {
		return nil, err
	}
	s.emitTopUp(ctx, events.TypeTopUpExpired, topup)
	return topup, nil
}

func (s *topUpService) HandleProviderStatus(ctx context.Context, providerRef, status string) (*types.TopUp, error) {
	topup, err := s.topups.GetByProviderRef(ctx, nil, providerRef)
	if err != nil {
		return nil, err
	}

	// Providers collapse intermediate states; a pending top-up may jump
	// straight to succeeded. Walk through processing when the direct hop is
	// not allowed but the bridged path is.
	path := []string{status}
	if !s.can(topup, status) &&
		s.can(topup, types.TopUpStatusProcessing) &&
		s.registry.CanTransition(lifecycle.EntityTopUp, types.TopUpStatusProcessing, lifecycle.State(status)) {
		path = []string{types.TopUpStatusProcessing, status}
	}

	for _, step := range path {
		if err := s.assert(topup, step); err != nil {
			return nil, err
		}
		if step == types.TopUpStatusSucceeded {
			ref := "topup:" + topup.ID.String()
			if _, err := s.ledger.Credit(ctx, topup.UserID, topup.Currency, topup.Amount, ref); err != nil {
				return nil, err
			}
		}
		topup.Status = step
		if err := s.topups.Save(ctx, nil, topup); err != nil {
			return nil, err
		}
		s.emitTopUp(ctx, topUpEventType(step), topup)
	}
	return topup, nil
}

func (s *topUpService) can(topup *types.TopUp, target string) bool {
	return s.registry.CanTransition(lifecycle.EntityTopUp, lifecycle.State(topup.Status), lifecycle.State(target))
}

func (s *topUpService) assert(topup *types.TopUp, target string) error {
	return s.registry.AssertTransition(lifecycle.EntityTopUp, lifecycle.State(topup.Status), lifecycle.State(target))
}

func topUpEventType(status string) string {
	switch status {
	case types.TopUpStatusProcessing:
		return events.TypeTopUpProcessing
	case types.TopUpStatusSucceeded:
		return events.TypeTopUpSucceeded
	case types.TopUpStatusFailed:
		return events.TypeTopUpFailed
	case types.TopUpStatusExpired:
		return events.TypeTopUpExpired
	default:
		return events.TypeTopUpInitiated
	}
}

func (s *topUpService) emitTopUp(ctx context.Context, eventType string, topup *types.TopUp) {
	emit(ctx, s.log, s.bus, events.Draft{
		Type:          eventType,
		AggregateID:   topup.ID.String(),
		AggregateType: "topup",
		Payload: map[string]any{
			"user_id":      topup.UserID.String(),
			"currency":     topup.Currency,
			"amount":       topup.Amount,
			"status":       topup.Status,
			"provider_ref": topup.ProviderRef,
		},
		Metadata: events.Metadata{TenantID: topup.TenantID},
	})
}
