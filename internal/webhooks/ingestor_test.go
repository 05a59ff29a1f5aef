package webhooks

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/offerhub/offerhub-backend/internal/kv"
	"github.com/offerhub/offerhub-backend/internal/lifecycle"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
	"github.com/offerhub/offerhub-backend/internal/types"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

type fakeTopUps struct {
	calls int
	err   error
}

func (f *fakeTopUps) HandleProviderStatus(ctx context.Context, providerRef, status string) (*types.TopUp, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &types.TopUp{ID: uuid.New(), ProviderRef: providerRef, Status: status}, nil
}

type fakeWithdrawals struct {
	calls int
}

func (f *fakeWithdrawals) HandleProviderStatus(ctx context.Context, providerRef, status string) (*types.Withdrawal, error) {
	f.calls++
	return &types.Withdrawal{ID: uuid.New(), ProviderRef: providerRef, Status: status}, nil
}

type fakeEscrows struct {
	calls int
}

func (f *fakeEscrows) HandleEscrowStatus(ctx context.Context, providerRef, status string) (*types.Escrow, error) {
	f.calls++
	return &types.Escrow{ID: uuid.New(), ProviderRef: providerRef, Status: status}, nil
}

func newTestIngestor(t *testing.T, topups *fakeTopUps, withdrawals *fakeWithdrawals, escrows *fakeEscrows) *Ingestor {
	t.Helper()
	mapper, err := NewStatusMapper()
	if err != nil {
		t.Fatalf("NewStatusMapper: %v", err)
	}
	return NewIngestor(
		mustTestLogger(t),
		NewVerifier("whsec_test", 0),
		kv.NewMemoryStore(),
		mapper,
		topups, withdrawals, escrows,
	)
}

func TestProcessDrivesMatchingService(t *testing.T) {
	topups := &fakeTopUps{}
	ing := newTestIngestor(t, topups, &fakeWithdrawals{}, &fakeEscrows{})

	res, err := ing.Process(context.Background(), &Payload{
		EventID:      "evt_1",
		ResourceType: "topup",
		ProviderRef:  "pi_1",
		Status:       "payment_succeeded",
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Processed || res.Duplicate || res.NewStatus != "succeeded" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if topups.calls != 1 {
		t.Fatalf("topup service calls = %d", topups.calls)
	}
}

func TestReplayedDeliveryMutatesOnce(t *testing.T) {
	topups := &fakeTopUps{}
	ing := newTestIngestor(t, topups, &fakeWithdrawals{}, &fakeEscrows{})
	ctx := context.Background()
	p := &Payload{EventID: "evt_1", ResourceType: "topup", ProviderRef: "pi_1", Status: "succeeded"}

	first, err := ing.Process(ctx, p)
	if err != nil || !first.Processed {
		t.Fatalf("first delivery: %+v %v", first, err)
	}
	second, err := ing.Process(ctx, p)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if !second.Duplicate || second.Processed {
		t.Fatalf("replay must be reported as duplicate: %+v", second)
	}
	if topups.calls != 1 {
		t.Fatalf("replay must not touch the service, calls = %d", topups.calls)
	}
}

func TestBusinessRejectionKeepsClaim(t *testing.T) {
	topups := &fakeTopUps{err: &lifecycle.TransitionError{
		Entity:  lifecycle.EntityTopUp,
		Current: "succeeded",
		Target:  "failed",
	}}
	ing := newTestIngestor(t, topups, &fakeWithdrawals{}, &fakeEscrows{})
	ctx := context.Background()
	p := &Payload{EventID: "evt_1", ResourceType: "topup", ProviderRef: "pi_1", Status: "failed"}

	res, err := ing.Process(ctx, p)
	if err != nil {
		t.Fatalf("business rejection must not surface as transport error: %v", err)
	}
	if res.Processed || res.Err == nil {
		t.Fatalf("expected business failure result: %+v", res)
	}

	// A rejected delivery can never start applying, so the replay short-circuits.
	res, err = ing.Process(ctx, p)
	if err != nil || !res.Duplicate {
		t.Fatalf("replay after rejection: %+v %v", res, err)
	}
	if topups.calls != 1 {
		t.Fatalf("service calls = %d", topups.calls)
	}
}

func TestInfrastructureFailureReleasesClaim(t *testing.T) {
	topups := &fakeTopUps{err: fmt.Errorf("connection reset")}
	ing := newTestIngestor(t, topups, &fakeWithdrawals{}, &fakeEscrows{})
	ctx := context.Background()
	p := &Payload{EventID: "evt_1", ResourceType: "topup", ProviderRef: "pi_1", Status: "succeeded"}

	if _, err := ing.Process(ctx, p); err == nil {
		t.Fatalf("infrastructure failure must surface")
	}

	// The claim was released, so the provider's retry gets a real attempt.
	topups.err = nil
	res, err := ing.Process(ctx, p)
	if err != nil || !res.Processed {
		t.Fatalf("retry after infra failure: %+v %v", res, err)
	}
	if topups.calls != 2 {
		t.Fatalf("service calls = %d", topups.calls)
	}
}

func TestUnknownStatusIsBusinessOutcome(t *testing.T) {
	ing := newTestIngestor(t, &fakeTopUps{}, &fakeWithdrawals{}, &fakeEscrows{})

	res, err := ing.Process(context.Background(), &Payload{
		EventID:      "evt_1",
		ResourceType: "topup",
		ProviderRef:  "pi_1",
		Status:       "teleported",
	})
	if err != nil {
		t.Fatalf("unknown status must not be a transport error: %v", err)
	}
	var unknown *UnknownStatusError
	if res.Processed || !errors.As(res.Err, &unknown) {
		t.Fatalf("expected UnknownStatusError outcome: %+v", res)
	}
}

func TestEscrowDeliveryRoutesToEscrowService(t *testing.T) {
	escrows := &fakeEscrows{}
	ing := newTestIngestor(t, &fakeTopUps{}, &fakeWithdrawals{}, escrows)

	res, err := ing.Process(context.Background(), &Payload{
		EventID:      "evt_1",
		ResourceType: "escrow",
		ProviderRef:  "esc_1",
		Status:       "funded",
	})
	if err != nil || !res.Processed || res.NewStatus != "funded" {
		t.Fatalf("escrow delivery: %+v %v", res, err)
	}
	if escrows.calls != 1 {
		t.Fatalf("escrow service calls = %d", escrows.calls)
	}
}
