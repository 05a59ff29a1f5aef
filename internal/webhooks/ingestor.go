package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/offerhub/offerhub-backend/internal/kv"
	"github.com/offerhub/offerhub-backend/internal/ledger"
	"github.com/offerhub/offerhub-backend/internal/lifecycle"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
	"github.com/offerhub/offerhub-backend/internal/types"
)

// DedupTTL is how long a processed provider event id stays claimed. Providers
// retry for days, so the window is generous.
const DedupTTL = 7 * 24 * time.Hour

// Processors are the slices of the services the ingestor drives.
type TopUpProcessor interface {
	HandleProviderStatus(ctx context.Context, providerRef, status string) (*types.TopUp, error)
}

type WithdrawalProcessor interface {
	HandleProviderStatus(ctx context.Context, providerRef, status string) (*types.Withdrawal, error)
}

type EscrowProcessor interface {
	HandleEscrowStatus(ctx context.Context, providerRef, status string) (*types.Escrow, error)
}

// Result is the outcome of processing one verified delivery. Exactly one of
// Duplicate / Processed / Err describes it; all three false+nil never happens
// except for a business rejection, where Err carries the reason and the
// transport still answers 200.
type Result struct {
	Duplicate    bool
	Processed    bool
	ResourceID   uuid.UUID
	ResourceType string
	NewStatus    string
	Err          error
}

// Ingestor turns provider notifications into internal state changes. Each
// delivery is one logical unit: dedup claim, vocabulary mapping, service
// call. Replays of an already-claimed event id touch nothing.
type Ingestor struct {
	log         *logger.Logger
	verifier    *Verifier
	store       kv.Store
	mapper      *StatusMapper
	topups      TopUpProcessor
	withdrawals WithdrawalProcessor
	escrows     EscrowProcessor
}

func NewIngestor(
	log *logger.Logger,
	verifier *Verifier,
	store kv.Store,
	mapper *StatusMapper,
	topups TopUpProcessor,
	withdrawals WithdrawalProcessor,
	escrows EscrowProcessor,
) *Ingestor {
	return &Ingestor{
		log:         log.With("component", "WebhookIngestor"),
		verifier:    verifier,
		store:       store,
		mapper:      mapper,
		topups:      topups,
		withdrawals: withdrawals,
		escrows:     escrows,
	}
}

// Verify authenticates a raw delivery. Callers must not touch the body
// before verification.
func (i *Ingestor) Verify(body []byte, headers http.Header) (*Payload, error) {
	return i.verifier.Verify(body, headers)
}

func dedupKey(eventID string) string {
	return "webhook:event:" + eventID
}

func (i *Ingestor) Process(ctx context.Context, p *Payload) (Result, error) {
	if p.EventID == "" {
		return Result{Err: fmt.Errorf("delivery has no event id")}, nil
	}

	claimed, err := i.store.SetNX(ctx, dedupKey(p.EventID), []byte("1"), DedupTTL)
	if err != nil {
		return Result{}, err
	}
	if !claimed {
		i.log.Info("webhook replayed, skipping", "event_id", p.EventID)
		return Result{Duplicate: true}, nil
	}

	res, err := i.dispatch(ctx, p)
	if err != nil {
		if isBusinessError(err) {
			// The claim stays: replaying a delivery that cannot apply will
			// never start applying.
			i.log.Warn("webhook rejected",
				"event_id", p.EventID, "resource_type", p.ResourceType,
				"provider_ref", p.ProviderRef, "error", err)
			return Result{ResourceType: p.ResourceType, Err: err}, nil
		}
		// Infrastructure failed before the mutation stuck; release the claim
		// so the provider's retry gets another attempt.
		if delErr := i.store.Del(ctx, dedupKey(p.EventID)); delErr != nil {
			i.log.Error("dedup claim release failed", "event_id", p.EventID, "error", delErr)
		}
		return Result{}, err
	}

	i.log.Info("webhook processed",
		"event_id", p.EventID, "resource_type", res.ResourceType,
		"resource_id", res.ResourceID, "new_status", res.NewStatus)
	return res, nil
}

func (i *Ingestor) dispatch(ctx context.Context, p *Payload) (Result, error) {
	status, err := i.mapper.Map(p.ResourceType, p.Status)
	if err != nil {
		return Result{}, err
	}

	switch p.ResourceType {
	case "topup":
		t, err := i.topups.HandleProviderStatus(ctx, p.ProviderRef, status)
		if err != nil {
			return Result{}, err
		}
		return Result{Processed: true, ResourceID: t.ID, ResourceType: "topup", NewStatus: t.Status}, nil
	case "withdrawal":
		w, err := i.withdrawals.HandleProviderStatus(ctx, p.ProviderRef, status)
		if err != nil {
			return Result{}, err
		}
		return Result{Processed: true, ResourceID: w.ID, ResourceType: "withdrawal", NewStatus: w.Status}, nil
	case "escrow":
		e, err := i.escrows.HandleEscrowStatus(ctx, p.ProviderRef, status)
		if err != nil {
			return Result{}, err
		}
		return Result{Processed: true, ResourceID: e.ID, ResourceType: "escrow", NewStatus: e.Status}, nil
	default:
		return Result{}, &UnknownStatusError{ResourceType: p.ResourceType, Status: p.Status}
	}
}

// isBusinessError separates "this delivery can never apply" from "we failed
// to apply it". Only the latter is worth a provider retry.
func isBusinessError(err error) bool {
	var (
		transition *lifecycle.TransitionError
		unknown    *UnknownStatusError
		validation *ledger.ValidationError
		funds      *ledger.InsufficientFundsError
	)
	return errors.As(err, &transition) ||
		errors.As(err, &unknown) ||
		errors.As(err, &validation) ||
		errors.As(err, &funds) ||
		errors.Is(err, gorm.ErrRecordNotFound)
}
