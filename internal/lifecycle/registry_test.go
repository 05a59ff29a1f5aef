package lifecycle

import (
	"errors"
	"testing"

	"github.com/offerhub/offerhub-backend/internal/types"
)

func TestOrderHappyPath(t *testing.T) {
	reg := NewRegistry()
	path := []State{
		types.OrderStatusCreated,
		types.OrderStatusFundsReserved,
		types.OrderStatusEscrowCreating,
		types.OrderStatusEscrowFunding,
		types.OrderStatusEscrowFunded,
		types.OrderStatusInProgress,
		types.OrderStatusReleaseRequested,
		types.OrderStatusReleased,
		types.OrderStatusClosed,
	}
	for i := 0; i < len(path)-1; i++ {
		if err := reg.AssertTransition(EntityOrder, path[i], path[i+1]); err != nil {
			t.Fatalf("step %s -> %s: %v", path[i], path[i+1], err)
		}
	}
}

func TestDisputedOrderCanReleaseOrRefund(t *testing.T) {
	reg := NewRegistry()
	for _, target := range []State{types.OrderStatusReleased, types.OrderStatusRefunded} {
		if !reg.CanTransition(EntityOrder, types.OrderStatusDisputed, target) {
			t.Fatalf("disputed order should allow %s", target)
		}
	}
	if reg.CanTransition(EntityOrder, types.OrderStatusDisputed, types.OrderStatusInProgress) {
		t.Fatalf("disputed order must not go back to in_progress")
	}
}

func TestNoSelfOrBackwardTransitions(t *testing.T) {
	reg := NewRegistry()
	for entity, table := range reg.tables {
		for from, next := range table {
			for _, to := range next {
				if to == from {
					t.Fatalf("%s: self transition listed for %s", entity, from)
				}
			}
		}
	}
}

func TestTerminalStatesHaveEmptyOutgoingSet(t *testing.T) {
	reg := NewRegistry()
	terminals := map[Entity][]State{
		EntityOrder:      {types.OrderStatusClosed},
		EntityEscrow:     {types.EscrowStatusReleased, types.EscrowStatusRefunded},
		EntityTopUp:      {types.TopUpStatusSucceeded, types.TopUpStatusFailed, types.TopUpStatusExpired},
		EntityWithdrawal: {types.WithdrawalStatusCompleted, types.WithdrawalStatusFailed, types.WithdrawalStatusRejected, types.WithdrawalStatusCancelled},
		EntityDispute:    {types.DisputeStatusWithdrawn, types.DisputeStatusResolvedClient, types.DisputeStatusResolvedFreelancer, types.DisputeStatusResolvedSplit},
	}
	for entity, states := range terminals {
		for _, st := range states {
			if !reg.IsTerminal(entity, st) {
				t.Fatalf("%s: %s should be terminal", entity, st)
			}
			if got := reg.AllowedTransitions(entity, st); len(got) != 0 {
				t.Fatalf("%s: terminal %s has outgoing transitions %v", entity, st, got)
			}
			if err := reg.AssertTransition(entity, st, types.OrderStatusCreated); err == nil {
				t.Fatalf("%s: transition out of terminal %s should fail", entity, st)
			}
		}
	}
}

func TestTransitionErrorCarriesContext(t *testing.T) {
	reg := NewRegistry()
	err := reg.AssertTransition(EntityTopUp, types.TopUpStatusPending, types.TopUpStatusSucceeded)
	if err == nil {
		t.Fatalf("pending -> succeeded should be rejected (must pass through processing)")
	}
	var terr *TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransitionError, got %T", err)
	}
	if terr.Entity != EntityTopUp || terr.Current != types.TopUpStatusPending || terr.Target != types.TopUpStatusSucceeded {
		t.Fatalf("unexpected error context: %+v", terr)
	}
	want := map[State]bool{
		types.TopUpStatusProcessing: true,
		types.TopUpStatusFailed:     true,
		types.TopUpStatusExpired:    true,
	}
	if len(terr.Allowed) != len(want) {
		t.Fatalf("allowed set mismatch: %v", terr.Allowed)
	}
	for _, s := range terr.Allowed {
		if !want[s] {
			t.Fatalf("unexpected allowed state %s", s)
		}
	}
}

func TestUnknownEntityAndState(t *testing.T) {
	reg := NewRegistry()
	if reg.CanTransition(Entity("invoice"), "a", "b") {
		t.Fatalf("unknown entity should never allow transitions")
	}
	if reg.IsTerminal(EntityOrder, "no_such_state") {
		t.Fatalf("unknown state must not report terminal")
	}
	if got := reg.AllowedTransitions(EntityOrder, "no_such_state"); len(got) != 0 {
		t.Fatalf("unknown state should have no allowed transitions, got %v", got)
	}
}
