package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/offerhub/offerhub-backend/internal/events"
	"github.com/offerhub/offerhub-backend/internal/events/bus"
	"github.com/offerhub/offerhub-backend/internal/ledger"
	"github.com/offerhub/offerhub-backend/internal/lifecycle"
	"github.com/offerhub/offerhub-backend/internal/platform/apierr"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
	"github.com/offerhub/offerhub-backend/internal/repos"
	"github.com/offerhub/offerhub-backend/internal/types"
)

type OpenDisputeInput struct {
	TenantID   string
	OrderID    uuid.UUID
	RaisedByID uuid.UUID
	Reason     string
	Evidence   map[string]any
}

// DisputeService arbitrates contested orders. Opening a dispute freezes the
// order in disputed; resolution settles the escrowed funds to the client,
// the freelancer, or both.
type DisputeService interface {
	Open(ctx context.Context, in OpenDisputeInput) (*types.Dispute, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Dispute, error)
	Review(ctx context.Context, id uuid.UUID) (*types.Dispute, error)
	Withdraw(ctx context.Context, id uuid.UUID) (*types.Dispute, error)
	Resolve(ctx context.Context, id uuid.UUID, outcome string) (*types.Dispute, error)
}

type disputeService struct {
	log      *logger.Logger
	registry *lifecycle.Registry
	disputes repos.DisputeRepo
	orders   OrderService
	bus      *bus.Bus
}

func NewDisputeService(
	baseLog *logger.Logger,
	registry *lifecycle.Registry,
	disputes repos.DisputeRepo,
	orders OrderService,
	b *bus.Bus,
) DisputeService {
	return &disputeService{
		log:      baseLog.With("service", "DisputeService"),
		registry: registry,
		disputes: disputes,
		orders:   orders,
		bus:      b,
	}
}

func (s *disputeService) Open(ctx context.Context, in OpenDisputeInput) (*types.Dispute, error) {
	if in.OrderID == uuid.Nil {
		return nil, &ledger.ValidationError{Field: "order_id", Value: in.OrderID.String(), Reason: "required"}
	}
	if in.RaisedByID == uuid.Nil {
		return nil, &ledger.ValidationError{Field: "raised_by_id", Value: in.RaisedByID.String(), Reason: "required"}
	}
	if in.Reason == "" {
		return nil, &ledger.ValidationError{Field: "reason", Value: in.Reason, Reason: "required"}
	}
	if existing, err := s.disputes.GetOpenByOrderID(ctx, nil, in.OrderID); err == nil && existing != nil {
		return nil, &ledger.ValidationError{Field: "order_id", Value: in.OrderID.String(), Reason: "order already has an open dispute"}
	}

	// Freezing the order first also validates that it is disputable.
	if _, err := s.orders.MarkDisputed(ctx, in.OrderID); err != nil {
		return nil, err
	}

	dispute := &types.Dispute{
		TenantID:   in.TenantID,
		OrderID:    in.OrderID,
		RaisedByID: in.RaisedByID,
		Reason:     in.Reason,
		Status:     types.DisputeStatusOpen,
		Evidence:   toJSON(in.Evidence),
	}
	if err := s.disputes.Create(ctx, nil, dispute); err != nil {
		return nil, err
	}
	s.emitDispute(ctx, events.TypeDisputeOpened, dispute, nil)
	return dispute, nil
}

func (s *disputeService) Get(ctx context.Context, id uuid.UUID) (*types.Dispute, error) {
	return s.disputes.GetByID(ctx, nil, id)
}

func (s *disputeService) Review(ctx context.Context, id uuid.UUID) (*types.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if err := s.assert(dispute, types.DisputeStatusUnderReview); err != nil {
		return nil, err
	}
	dispute.Status = types.DisputeStatusUnderReview
	if err := s.disputes.Save(ctx, nil, dispute); err != nil {
		return nil, err
	}
	s.emitDispute(ctx, events.TypeDisputeUnderReview, dispute, nil)
	return dispute, nil
}

// Withdraw closes a dispute the raiser retracted before review. The order
// stays disputed; settlement still needs an explicit release or refund.
func (s *disputeService) Withdraw(ctx context.Context, id uuid.UUID) (*types.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if err := s.assert(dispute, types.DisputeStatusWithdrawn); err != nil {
		return nil, err
	}
	dispute.Status = types.DisputeStatusWithdrawn
	now := time.Now().UTC()
	dispute.ResolvedAt = &now
	if err := s.disputes.Save(ctx, nil, dispute); err != nil {
		return nil, err
	}
	s.emitDispute(ctx, events.TypeDisputeWithdrawn, dispute, nil)
	return dispute, nil
}

// Resolve settles the dispute. Outcome is one of resolved_client (refund),
// resolved_freelancer (release), resolved_split (half each). The money moves
// before the dispute record flips so a settlement failure leaves the dispute
// under review and retryable.
func (s *disputeService) Resolve(ctx context.Context, id uuid.UUID, outcome string) (*types.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if err := s.assert(dispute, outcome); err != nil {
		return nil, err
	}

	switch outcome {
	case types.DisputeStatusResolvedClient:
		_, err = s.orders.Refund(ctx, dispute.OrderID)
	case types.DisputeStatusResolvedFreelancer:
		_, err = s.orders.Release(ctx, dispute.OrderID)
	case types.DisputeStatusResolvedSplit:
		_, err = s.orders.SettleSplit(ctx, dispute.OrderID)
	default:
		err = apierr.New(http.StatusBadRequest, "invalid_outcome", fmt.Errorf("unknown dispute outcome %q", outcome))
	}
	if err != nil {
		return nil, err
	}

	dispute.Status = outcome
	now := time.Now().UTC()
	dispute.ResolvedAt = &now
	if err := s.disputes.Save(ctx, nil, dispute); err != nil {
		return nil, err
	}
	s.emitDispute(ctx, events.TypeDisputeResolved, dispute, map[string]any{"outcome": outcome})
	return dispute, nil
}

func (s *disputeService) assert(dispute *types.Dispute, target string) error {
	return s.registry.AssertTransition(lifecycle.EntityDispute, lifecycle.State(dispute.Status), lifecycle.State(target))
}

func (s *disputeService) emitDispute(ctx context.Context, eventType string, dispute *types.Dispute, extra map[string]any) {
	payload := map[string]any{
		"order_id":     dispute.OrderID.String(),
		"raised_by_id": dispute.RaisedByID.String(),
		"status":       dispute.Status,
	}
	for k, v := range extra {
		payload[k] = v
	}
	emit(ctx, s.log, s.bus, events.Draft{
		Type:          eventType,
		AggregateID:   dispute.ID.String(),
		AggregateType: "dispute",
		Payload:       payload,
		Metadata:      events.Metadata{TenantID: dispute.TenantID},
	})
}
