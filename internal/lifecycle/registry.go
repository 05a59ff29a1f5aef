package lifecycle

import (
	"fmt"
	"strings"

	"github.com/offerhub/offerhub-backend/internal/types"
)

type Entity string

const (
	EntityOrder      Entity = "order"
	EntityEscrow     Entity = "escrow"
	EntityTopUp      Entity = "topup"
	EntityWithdrawal Entity = "withdrawal"
	EntityDispute    Entity = "dispute"
)

type State string

// TransitionError reports a rejected status change with enough context for
// callers to render an actionable message and for tests to assert on the
// allowed set.
type TransitionError struct {
	Entity  Entity
	Current State
	Target  State
	Allowed []State
}

func (e *TransitionError) Error() string {
	allowed := make([]string, 0, len(e.Allowed))
	for _, s := range e.Allowed {
		allowed = append(allowed, string(s))
	}
	return fmt.Sprintf("%s: invalid transition %q -> %q (allowed: [%s])",
		e.Entity, e.Current, e.Target, strings.Join(allowed, " "))
}

// Registry validates status changes for the five lifecycle entities against
// static append-only transition tables. Terminal states map to an empty
// outgoing set; self and backward transitions are never listed.
type Registry struct {
	tables map[Entity]map[State][]State
}

func NewRegistry() *Registry {
	return &Registry{tables: map[Entity]map[State][]State{
		EntityOrder: {
			types.OrderStatusCreated:          {types.OrderStatusFundsReserved},
			types.OrderStatusFundsReserved:    {types.OrderStatusEscrowCreating},
			types.OrderStatusEscrowCreating:   {types.OrderStatusEscrowFunding},
			types.OrderStatusEscrowFunding:    {types.OrderStatusEscrowFunded},
			types.OrderStatusEscrowFunded:     {types.OrderStatusInProgress},
			types.OrderStatusInProgress:       {types.OrderStatusReleaseRequested, types.OrderStatusRefundRequested, types.OrderStatusDisputed},
			types.OrderStatusReleaseRequested: {types.OrderStatusReleased},
			types.OrderStatusRefundRequested:  {types.OrderStatusRefunded},
			types.OrderStatusDisputed:         {types.OrderStatusReleased, types.OrderStatusRefunded},
			types.OrderStatusReleased:         {types.OrderStatusClosed},
			types.OrderStatusRefunded:         {types.OrderStatusClosed},
			types.OrderStatusClosed:           {},
		},
		EntityEscrow: {
			types.EscrowStatusCreated:  {types.EscrowStatusFunded},
			types.EscrowStatusFunded:   {types.EscrowStatusReleased, types.EscrowStatusRefunded, types.EscrowStatusDisputed},
			types.EscrowStatusDisputed: {types.EscrowStatusReleased, types.EscrowStatusRefunded},
			types.EscrowStatusReleased: {},
			types.EscrowStatusRefunded: {},
		},
		EntityTopUp: {
			types.TopUpStatusPending:    {types.TopUpStatusProcessing, types.TopUpStatusFailed, types.TopUpStatusExpired},
			types.TopUpStatusProcessing: {types.TopUpStatusSucceeded, types.TopUpStatusFailed},
			types.TopUpStatusSucceeded:  {},
			types.TopUpStatusFailed:     {},
			types.TopUpStatusExpired:    {},
		},
		EntityWithdrawal: {
			types.WithdrawalStatusRequested:  {types.WithdrawalStatusProcessing, types.WithdrawalStatusRejected, types.WithdrawalStatusCancelled},
			types.WithdrawalStatusProcessing: {types.WithdrawalStatusCompleted, types.WithdrawalStatusFailed},
			types.WithdrawalStatusCompleted:  {},
			types.WithdrawalStatusFailed:     {},
			types.WithdrawalStatusRejected:   {},
			types.WithdrawalStatusCancelled:  {},
		},
		EntityDispute: {
			types.DisputeStatusOpen:               {types.DisputeStatusUnderReview, types.DisputeStatusWithdrawn},
			types.DisputeStatusUnderReview:        {types.DisputeStatusResolvedClient, types.DisputeStatusResolvedFreelancer, types.DisputeStatusResolvedSplit},
			types.DisputeStatusWithdrawn:          {},
			types.DisputeStatusResolvedClient:     {},
			types.DisputeStatusResolvedFreelancer: {},
			types.DisputeStatusResolvedSplit:      {},
		},
	}}
}

func (r *Registry) CanTransition(entity Entity, from, to State) bool {
	for _, next := range r.AllowedTransitions(entity, from) {
		if next == to {
			return true
		}
	}
	return false
}

func (r *Registry) AssertTransition(entity Entity, from, to State) error {
	if r.CanTransition(entity, from, to) {
		return nil
	}
	return &TransitionError{
		Entity:  entity,
		Current: from,
		Target:  to,
		Allowed: r.AllowedTransitions(entity, from),
	}
}

func (r *Registry) AllowedTransitions(entity Entity, from State) []State {
	table, ok := r.tables[entity]
	if !ok {
		return nil
	}
	next := table[from]
	out := make([]State, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether state is a known state with no outgoing
// transitions. Unknown states are not terminal, they are invalid.
func (r *Registry) IsTerminal(entity Entity, state State) bool {
	table, ok := r.tables[entity]
	if !ok {
		return false
	}
	next, known := table[state]
	return known && len(next) == 0
}
