package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/offerhub/offerhub-backend/internal/events"
	"github.com/offerhub/offerhub-backend/internal/events/bus"
	"github.com/offerhub/offerhub-backend/internal/ledger"
	"github.com/offerhub/offerhub-backend/internal/lifecycle"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
	"github.com/offerhub/offerhub-backend/internal/repos"
	"github.com/offerhub/offerhub-backend/internal/types"
)

type CreateOrderInput struct {
	TenantID     string
	ClientID     uuid.UUID
	FreelancerID uuid.UUID
	Currency     string
	Amount       string
	Metadata     map[string]any
}

// OrderService drives the order lifecycle from creation through settlement.
// The client's funds sit in the reserved bucket for the lifetime of the
// order: release settles them to the freelancer, refund returns them.
type OrderService interface {
	Create(ctx context.Context, in CreateOrderInput) (*types.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Order, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*types.Order, error)

	ReserveFunds(ctx context.Context, orderID uuid.UUID) (*types.Order, error)
	StartEscrow(ctx context.Context, orderID uuid.UUID, providerRef string) (*types.Order, error)
	MarkEscrowFunding(ctx context.Context, orderID uuid.UUID) (*types.Order, error)
	Start(ctx context.Context, orderID uuid.UUID) (*types.Order, error)
	RequestRelease(ctx context.Context, orderID uuid.UUID) (*types.Order, error)
	Release(ctx context.Context, orderID uuid.UUID) (*types.Order, error)
	RequestRefund(ctx context.Context, orderID uuid.UUID) (*types.Order, error)
	Refund(ctx context.Context, orderID uuid.UUID) (*types.Order, error)
	Close(ctx context.Context, orderID uuid.UUID) (*types.Order, error)

	// MarkDisputed and SettleSplit are driven by the dispute service.
	MarkDisputed(ctx context.Context, orderID uuid.UUID) (*types.Order, error)
	SettleSplit(ctx context.Context, orderID uuid.UUID) (*types.Order, error)

	// HandleEscrowStatus applies a provider-side escrow notification.
	HandleEscrowStatus(ctx context.Context, providerRef, status string) (*types.Escrow, error)
}

// SettlementFees is the platform's cut of escrow settlements, in basis
// points, credited to the platform account when funds move to the
// freelancer. A zero rate or account disables collection; refunds are
// never charged.
type SettlementFees struct {
	PlatformAccountID uuid.UUID
	EscrowFeeBPS      int64
}

func (f SettlementFees) escrowFee(total decimal.Decimal) decimal.Decimal {
	if f.EscrowFeeBPS <= 0 || f.PlatformAccountID == uuid.Nil {
		return decimal.Zero
	}
	bps := decimal.NewFromInt(f.EscrowFeeBPS)
	return total.Mul(bps).Div(decimal.NewFromInt(10000)).RoundDown(2)
}

type orderService struct {
	db       *gorm.DB
	log      *logger.Logger
	registry *lifecycle.Registry
	orders   repos.OrderRepo
	escrows  repos.EscrowRepo
	ledger   ledger.Ledger
	bus      *bus.Bus
	fees     SettlementFees
}

func NewOrderService(
	db *gorm.DB,
	baseLog *logger.Logger,
	registry *lifecycle.Registry,
	orders repos.OrderRepo,
	escrows repos.EscrowRepo,
	led ledger.Ledger,
	b *bus.Bus,
	fees SettlementFees,
) OrderService {
	return &orderService{
		db:       db,
		log:      baseLog.With("service", "OrderService"),
		registry: registry,
		orders:   orders,
		escrows:  escrows,
		ledger:   led,
		bus:      b,
		fees:     fees,
	}
}

func (s *orderService) Create(ctx context.Context, in CreateOrderInput) (*types.Order, error) {
	if err := ledger.ValidateAmount(in.Amount); err != nil {
		return nil, err
	}
	if in.ClientID == uuid.Nil {
		return nil, &ledger.ValidationError{Field: "client_id", Value: in.ClientID.String(), Reason: "required"}
	}
	if in.FreelancerID == uuid.Nil {
		return nil, &ledger.ValidationError{Field: "freelancer_id", Value: in.FreelancerID.String(), Reason: "required"}
	}
	if in.ClientID == in.FreelancerID {
		return nil, &ledger.ValidationError{Field: "freelancer_id", Value: in.FreelancerID.String(), Reason: "client and freelancer must differ"}
	}
	if in.Currency == "" {
		return nil, &ledger.ValidationError{Field: "currency", Value: in.Currency, Reason: "required"}
	}

	order := &types.Order{
		TenantID:     in.TenantID,
		ClientID:     in.ClientID,
		FreelancerID: in.FreelancerID,
		Currency:     in.Currency,
		Amount:       in.Amount,
		Status:       types.OrderStatusCreated,
		Metadata:     toJSON(in.Metadata),
	}
	if err := s.orders.Create(ctx, nil, order); err != nil {
		return nil, err
	}
	s.emitOrder(ctx, events.TypeOrderCreated, order, nil)
	return order, nil
}

func (s *orderService) Get(ctx context.Context, id uuid.UUID) (*types.Order, error) {
	return s.orders.GetByID(ctx, nil, id)
}

func (s *orderService) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*types.Order, error) {
	return s.orders.ListByClient(ctx, nil, clientID)
}

func (s *orderService) ReserveFunds(ctx context.Context, orderID uuid.UUID) (*types.Order, error) {
	order, err := s.orders.GetByID(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.assertOrder(order, types.OrderStatusFundsReserved); err != nil {
		return nil, err
	}
	if _, err := s.ledger.Reserve(ctx, order.ClientID, order.Currency, order.Amount, "order:"+order.ID.String()); err != nil {
		return nil, err
	}
	return s.saveOrderStatus(ctx, order, types.OrderStatusFundsReserved, events.TypeOrderFundsReserved, nil)
}

func (s *orderService) StartEscrow(ctx context.Context, orderID uuid.UUID, providerRef string) (*types.Order, error) {
	order, err := s.orders.GetByID(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.assertOrder(order, types.OrderStatusEscrowCreating); err != nil {
		return nil, err
	}
	if providerRef == "" {
		return nil, &ledger.ValidationError{Field: "provider_ref", Value: providerRef, Reason: "required"}
	}

	escrow := &types.Escrow{
		OrderID:      order.ID,
		ProviderRef:  providerRef,
		Currency:     order.Currency,
		Amount:       order.Amount,
		FeeCollected: "0.00",
		Status:       types.EscrowStatusCreated,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.escrows.Create(ctx, tx, escrow); err != nil {
			return err
		}
		order.Status = types.OrderStatusEscrowCreating
		return s.orders.Save(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	s.emitOrder(ctx, events.TypeOrderEscrowCreating, order, map[string]any{"provider_ref": providerRef})
	s.emitEscrow(ctx, events.TypeEscrowCreated, escrow)
	return order, nil
}

func (s *orderService) MarkEscrowFunding(ctx context.Context, orderID uuid.UUID) (*types.Order, error) {
	return s.transitionOrder(ctx, orderID, types.OrderStatusEscrowFunding, events.TypeOrderEscrowFunding)
}

func (s *orderService) Start(ctx context.Context, orderID uuid.UUID) (*types.Order, error) {
	return s.transitionOrder(ctx, orderID, types.OrderStatusInProgress, events.TypeOrderStarted)
}

func (s *orderService) RequestRelease(ctx context.Context, orderID uuid.UUID) (*types.Order, error) {
	return s.transitionOrder(ctx, orderID, types.OrderStatusReleaseRequested, events.TypeOrderReleaseRequested)
}

func (s *orderService) RequestRefund(ctx context.Context, orderID uuid.UUID) (*types.Order, error) {
	return s.transitionOrder(ctx, orderID, types.OrderStatusRefundRequested, events.TypeOrderRefundRequested)
}

func (s *orderService) MarkDisputed(ctx context.Context, orderID uuid.UUID) (*types.Order, error) {
	order, err := s.orders.GetByID(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.assertOrder(order, types.OrderStatusDisputed); err != nil {
		return nil, err
	}

	escrow, err := s.escrows.GetByOrderID(ctx, nil, order.ID)
	if err != nil {
		return nil, err
	}
	if err := s.assertEscrow(escrow, types.EscrowStatusDisputed); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order.Status = types.OrderStatusDisputed
		if err := s.orders.Save(ctx, tx, order); err != nil {
			return err
		}
		escrow.Status = types.EscrowStatusDisputed
		return s.escrows.Save(ctx, tx, escrow)
	})
	if err != nil {
		return nil, err
	}
	s.emitOrder(ctx, events.TypeOrderDisputed, order, nil)
	s.emitEscrow(ctx, events.TypeEscrowDisputed, escrow)
	return order, nil
}

// Release settles the order to the freelancer: the client's reservation is
// consumed and the freelancer's available balance credited. Valid from
// release_requested and from disputed (arbitration in the freelancer's favor).
func (s *orderService) Release(ctx context.Context, orderID uuid.UUID) (*types.Order, error) {
	order, err := s.orders.GetByID(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}
	return s.settleRelease(ctx, order)
}

// Refund returns the reservation to the client's available balance. Valid
// from refund_requested and from disputed.
func (s *orderService) Refund(ctx context.Context, orderID uuid.UUID) (*types.Order, error) {
	order, err := s.orders.GetByID(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}
	return s.settleRefund(ctx, order)
}

// SettleSplit divides the order amount between both parties after an
// arbitration that found for neither side alone. The freelancer gets the
// rounded-down half; the odd cent stays with the client.
func (s *orderService) SettleSplit(ctx context.Context, orderID uuid.UUID) (*types.Order, error) {
	order, err := s.orders.GetByID(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.assertOrder(order, types.OrderStatusReleased); err != nil {
		return nil, err
	}
	escrow, err := s.escrows.GetByOrderID(ctx, nil, order.ID)
	if err != nil {
		return nil, err
	}
	if err := s.assertEscrow(escrow, types.EscrowStatusReleased); err != nil {
		return nil, err
	}

	total, err := decimal.NewFromString(order.Amount)
	if err != nil {
		return nil, &ledger.ValidationError{Field: "amount", Value: order.Amount, Reason: err.Error()}
	}
	// The fee comes off the top; the remainder splits between the parties.
	fee := s.fees.escrowFee(total)
	distributable := total.Sub(fee)
	freelancerShare := distributable.Div(decimal.NewFromInt(2)).RoundDown(2)
	clientShare := distributable.Sub(freelancerShare)
	ref := "order:" + order.ID.String() + ":split"

	if !freelancerShare.IsZero() {
		if _, err := s.ledger.DeductReserved(ctx, order.ClientID, order.Currency, freelancerShare.StringFixed(2), ref); err != nil {
			return nil, err
		}
		if _, err := s.ledger.Credit(ctx, order.FreelancerID, order.Currency, freelancerShare.StringFixed(2), ref); err != nil {
			return nil, err
		}
	}
	if !fee.IsZero() {
		if _, err := s.ledger.DeductReserved(ctx, order.ClientID, order.Currency, fee.StringFixed(2), ref+":fee"); err != nil {
			return nil, err
		}
		if _, err := s.ledger.Credit(ctx, s.fees.PlatformAccountID, order.Currency, fee.StringFixed(2), ref+":fee"); err != nil {
			return nil, err
		}
	}
	if !clientShare.IsZero() {
		if _, err := s.ledger.Release(ctx, order.ClientID, order.Currency, clientShare.StringFixed(2), ref); err != nil {
			return nil, err
		}
	}

	escrow.FeeCollected = fee.StringFixed(2)
	payload := map[string]any{
		"freelancer_share": freelancerShare.StringFixed(2),
		"client_share":     clientShare.StringFixed(2),
		"fee_collected":    escrow.FeeCollected,
	}
	return s.settleStatuses(ctx, order, escrow, types.OrderStatusReleased, types.EscrowStatusReleased,
		events.TypeOrderReleased, events.TypeEscrowReleased, payload)
}

func (s *orderService) Close(ctx context.Context, orderID uuid.UUID) (*types.Order, error) {
	return s.transitionOrder(ctx, orderID, types.OrderStatusClosed, events.TypeOrderClosed)
}

func (s *orderService) HandleEscrowStatus(ctx context.Context, providerRef, status string) (*types.Escrow, error) {
	escrow, err := s.escrows.GetByProviderRef(ctx, nil, providerRef)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.GetByID(ctx, nil, escrow.OrderID)
	if err != nil {
		return nil, err
	}

	switch status {
	case types.EscrowStatusFunded:
		if err := s.assertEscrow(escrow, types.EscrowStatusFunded); err != nil {
			return nil, err
		}
		if err := s.assertOrder(order, types.OrderStatusEscrowFunded); err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			escrow.Status = types.EscrowStatusFunded
			escrow.FundedAt = &now
			if err := s.escrows.Save(ctx, tx, escrow); err != nil {
				return err
			}
			order.Status = types.OrderStatusEscrowFunded
			return s.orders.Save(ctx, tx, order)
		})
		if err != nil {
			return nil, err
		}
		s.emitEscrow(ctx, events.TypeEscrowFunded, escrow)
		s.emitOrder(ctx, events.TypeOrderEscrowFunded, order, map[string]any{"provider_ref": providerRef})
		return escrow, nil

	case types.EscrowStatusReleased:
		if _, err := s.settleRelease(ctx, order); err != nil {
			return nil, err
		}
		return s.escrows.GetByProviderRef(ctx, nil, providerRef)

	case types.EscrowStatusRefunded:
		if _, err := s.settleRefund(ctx, order); err != nil {
			return nil, err
		}
		return s.escrows.GetByProviderRef(ctx, nil, providerRef)

	case types.EscrowStatusDisputed:
		if _, err := s.MarkDisputed(ctx, order.ID); err != nil {
			return nil, err
		}
		return s.escrows.GetByProviderRef(ctx, nil, providerRef)

	default:
		return nil, &lifecycle.TransitionError{
			Entity:  lifecycle.EntityEscrow,
			Current: lifecycle.State(escrow.Status),
			Target:  lifecycle.State(status),
			Allowed: s.registry.AllowedTransitions(lifecycle.EntityEscrow, lifecycle.State(escrow.Status)),
		}
	}
}

func (s *orderService) settleRelease(ctx context.Context, order *types.Order) (*types.Order, error) {
	if err := s.assertOrder(order, types.OrderStatusReleased); err != nil {
		return nil, err
	}
	escrow, err := s.escrows.GetByOrderID(ctx, nil, order.ID)
	if err != nil {
		return nil, err
	}
	if err := s.assertEscrow(escrow, types.EscrowStatusReleased); err != nil {
		return nil, err
	}

	total, err := decimal.NewFromString(order.Amount)
	if err != nil {
		return nil, &ledger.ValidationError{Field: "amount", Value: order.Amount, Reason: err.Error()}
	}
	fee := s.fees.escrowFee(total)
	net := total.Sub(fee)

	ref := "order:" + order.ID.String() + ":release"
	if _, err := s.ledger.DeductReserved(ctx, order.ClientID, order.Currency, order.Amount, ref); err != nil {
		return nil, err
	}
	if !net.IsZero() {
		if _, err := s.ledger.Credit(ctx, order.FreelancerID, order.Currency, net.StringFixed(2), ref); err != nil {
			return nil, err
		}
	}
	if !fee.IsZero() {
		if _, err := s.ledger.Credit(ctx, s.fees.PlatformAccountID, order.Currency, fee.StringFixed(2), ref+":fee"); err != nil {
			return nil, err
		}
	}

	escrow.FeeCollected = fee.StringFixed(2)
	return s.settleStatuses(ctx, order, escrow, types.OrderStatusReleased, types.EscrowStatusReleased,
		events.TypeOrderReleased, events.TypeEscrowReleased, map[string]any{"fee_collected": escrow.FeeCollected})
}

func (s *orderService) settleRefund(ctx context.Context, order *types.Order) (*types.Order, error) {
	if err := s.assertOrder(order, types.OrderStatusRefunded); err != nil {
		return nil, err
	}
	escrow, err := s.escrows.GetByOrderID(ctx, nil, order.ID)
	if err != nil {
		return nil, err
	}
	if err := s.assertEscrow(escrow, types.EscrowStatusRefunded); err != nil {
		return nil, err
	}

	ref := "order:" + order.ID.String() + ":refund"
	if _, err := s.ledger.Release(ctx, order.ClientID, order.Currency, order.Amount, ref); err != nil {
		return nil, err
	}
	return s.settleStatuses(ctx, order, escrow, types.OrderStatusRefunded, types.EscrowStatusRefunded,
		events.TypeOrderRefunded, events.TypeEscrowRefunded, nil)
}

func (s *orderService) settleStatuses(
	ctx context.Context,
	order *types.Order,
	escrow *types.Escrow,
	orderStatus, escrowStatus, orderEvent, escrowEvent string,
	payload map[string]any,
) (*types.Order, error) {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order.Status = orderStatus
		if err := s.orders.Save(ctx, tx, order); err != nil {
			return err
		}
		escrow.Status = escrowStatus
		escrow.ResolvedAt = &now
		return s.escrows.Save(ctx, tx, escrow)
	})
	if err != nil {
		return nil, err
	}
	s.emitOrder(ctx, orderEvent, order, payload)
	s.emitEscrow(ctx, escrowEvent, escrow)
	return order, nil
}

func (s *orderService) transitionOrder(ctx context.Context, orderID uuid.UUID, target, eventType string) (*types.Order, error) {
	order, err := s.orders.GetByID(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.assertOrder(order, target); err != nil {
		return nil, err
	}
	return s.saveOrderStatus(ctx, order, target, eventType, nil)
}

func (s *orderService) saveOrderStatus(ctx context.Context, order *types.Order, target, eventType string, payload map[string]any) (*types.Order, error) {
	order.Status = target
	if err := s.orders.Save(ctx, nil, order); err != nil {
		return nil, err
	}
	s.emitOrder(ctx, eventType, order, payload)
	return order, nil
}

func (s *orderService) assertOrder(order *types.Order, target string) error {
	return s.registry.AssertTransition(lifecycle.EntityOrder, lifecycle.State(order.Status), lifecycle.State(target))
}

func (s *orderService) assertEscrow(escrow *types.Escrow, target string) error {
	return s.registry.AssertTransition(lifecycle.EntityEscrow, lifecycle.State(escrow.Status), lifecycle.State(target))
}

func (s *orderService) emitOrder(ctx context.Context, eventType string, order *types.Order, extra map[string]any) {
	payload := map[string]any{
		"client_id":     order.ClientID.String(),
		"freelancer_id": order.FreelancerID.String(),
		"currency":      order.Currency,
		"amount":        order.Amount,
		"status":        order.Status,
	}
	for k, v := range extra {
		payload[k] = v
	}
	emit(ctx, s.log, s.bus, events.Draft{
		Type:          eventType,
		AggregateID:   order.ID.String(),
		AggregateType: "order",
		Payload:       payload,
		Metadata:      events.Metadata{TenantID: order.TenantID},
	})
}

func (s *orderService) emitEscrow(ctx context.Context, eventType string, escrow *types.Escrow) {
	emit(ctx, s.log, s.bus, events.Draft{
		Type:          eventType,
		AggregateID:   escrow.ID.String(),
		AggregateType: "escrow",
		Payload: map[string]any{
			"order_id":      escrow.OrderID.String(),
			"provider_ref":  escrow.ProviderRef,
			"currency":      escrow.Currency,
			"amount":        escrow.Amount,
			"fee_collected": escrow.FeeCollected,
			"status":        escrow.Status,
		},
	})
}
