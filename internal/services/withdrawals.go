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

type RequestWithdrawalInput struct {
	TenantID    string
	UserID      uuid.UUID
	Currency    string
	Amount      string
	ProviderRef string
}

// WithdrawalService moves funds out of the platform. The amount is reserved
// at request time so it cannot be double-spent while the payout is in
// flight; settlement consumes the reservation, any failure returns it.
type WithdrawalService interface {
	Request(ctx context.Context, in RequestWithdrawalInput) (*types.Withdrawal, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Withdrawal, error)
	Cancel(ctx context.Context, id uuid.UUID) (*types.Withdrawal, error)
	HandleProviderStatus(ctx context.Context, providerRef, status string) (*types.Withdrawal, error)
}

type withdrawalService struct {
	log         *logger.Logger
	registry    *lifecycle.Registry
	withdrawals repos.WithdrawalRepo
	ledger      ledger.Ledger
	bus         *bus.Bus
}

func NewWithdrawalService(
	baseLog *logger.Logger,
	registry *lifecycle.Registry,
	withdrawals repos.WithdrawalRepo,
	led ledger.Ledger,
	b *bus.Bus,
) WithdrawalService {
	return &withdrawalService{
		log:         baseLog.With("service", "WithdrawalService"),
		registry:    registry,
		withdrawals: withdrawals,
		ledger:      led,
		bus:         b,
	}
}

func (s *withdrawalService) Request(ctx context.Context, in RequestWithdrawalInput) (*types.Withdrawal, error) {
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

	w := &types.Withdrawal{
		TenantID:    in.TenantID,
		UserID:      in.UserID,
		Currency:    in.Currency,
		Amount:      in.Amount,
		Status:      types.WithdrawalStatusRequested,
		ProviderRef: in.ProviderRef,
	}
	if _, err := s.ledger.Reserve(ctx, in.UserID, in.Currency, in.Amount, "withdrawal:"+in.ProviderRef); err != nil {
		return nil, err
	}
	if err := s.withdrawals.Create(ctx, nil, w); err != nil {
		// The reservation must not outlive a request we failed to record.
		if _, cancelErr := s.ledger.CancelReservation(ctx, in.UserID, in.Currency, in.Amount, "withdrawal:"+in.ProviderRef+":undo"); cancelErr != nil {
			s.log.Error("reservation rollback failed",
				"user_id", in.UserID, "amount", in.Amount, "error", cancelErr)
		}
		return nil, err
	}
	s.emitWithdrawal(ctx, events.TypeWithdrawalRequested, w)
	return w, nil
}

func (s *withdrawalService) Get(ctx context.Context, id uuid.UUID) (*types.Withdrawal, error) {
	return s.withdrawals.GetByID(ctx, nil, id)
}

// Cancel withdraws a request the provider has not started paying out.
func (s *withdrawalService) Cancel(ctx context.Context, id uuid.UUID) (*types.Withdrawal, error) {
	w, err := s.withdrawals.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, w, types.WithdrawalStatusCancelled)
}

func (s *withdrawalService) HandleProviderStatus(ctx context.Context, providerRef, status string) (*types.Withdrawal, error) {
	w, err := s.withdrawals.GetByProviderRef(ctx, nil, providerRef)
	if err != nil {
		return nil, err
	}

	// Same state-collapsing providers as top-ups: bridge requested →
	// processing → terminal when the direct hop is not in the table.
	if !s.can(w, status) &&
		s.can(w, types.WithdrawalStatusProcessing) &&
		s.registry.CanTransition(lifecycle.EntityWithdrawal, types.WithdrawalStatusProcessing, lifecycle.State(status)) {
		if _, err := s.apply(ctx, w, types.WithdrawalStatusProcessing); err != nil {
			return nil, err
		}
	}
	return s.apply(ctx, w, status)
}

func (s *withdrawalService) apply(ctx context.Context, w *types.Withdrawal, target string) (*types.Withdrawal, error) {
	if err := s.registry.AssertTransition(lifecycle.EntityWithdrawal, lifecycle.State(w.Status), lifecycle.State(target)); err != nil {
		return nil, err
	}

	ref := "withdrawal:" + w.ID.String()
	switch target {
	case types.WithdrawalStatusCompleted:
		if _, err := s.ledger.DeductReserved(ctx, w.UserID, w.Currency, w.Amount, ref); err != nil {
			return nil, err
		}
	case types.WithdrawalStatusFailed, types.WithdrawalStatusRejected, types.WithdrawalStatusCancelled:
		if _, err := s.ledger.CancelReservation(ctx, w.UserID, w.Currency, w.Amount, ref); err != nil {
			return nil, err
		}
	}

	w.Status = target
	if err := s.withdrawals.Save(ctx, nil, w); err != nil {
		return nil, err
	}
	s.emitWithdrawal(ctx, withdrawalEventType(target), w)
	return w, nil
}

func (s *withdrawalService) can(w *types.Withdrawal, target string) bool {
	return s.registry.CanTransition(lifecycle.EntityWithdrawal, lifecycle.State(w.Status), lifecycle.State(target))
}

func withdrawalEventType(status string) string {
	switch status {
	case types.WithdrawalStatusProcessing:
		return events.TypeWithdrawalProcessing
	case types.WithdrawalStatusCompleted:
		return events.TypeWithdrawalCompleted
	case types.WithdrawalStatusFailed:
		return events.TypeWithdrawalFailed
	case types.WithdrawalStatusRejected:
		return events.TypeWithdrawalRejected
	case types.WithdrawalStatusCancelled:
		return events.TypeWithdrawalCancelled
	default:
		return events.TypeWithdrawalRequested
	}
}

func (s *withdrawalService) emitWithdrawal(ctx context.Context, eventType string, w *types.Withdrawal) {
	emit(ctx, s.log, s.bus, events.Draft{
		Type:          eventType,
		AggregateID:   w.ID.String(),
		AggregateType: "withdrawal",
		Payload: map[string]any{
			"user_id":      w.UserID.String(),
			"currency":     w.Currency,
			"amount":       w.Amount,
			"status":       w.Status,
			"provider_ref": w.ProviderRef,
		},
		Metadata: events.Metadata{TenantID: w.TenantID},
	})
}
