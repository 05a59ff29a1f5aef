package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/offerhub/offerhub-backend/internal/kv"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
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

func newTestGuard(t *testing.T) *Guard {
	t.Helper()
	return NewGuard(mustTestLogger(t), kv.NewMemoryStore(), time.Minute, time.Hour)
}

func TestFirstBeginProceeds(t *testing.T) {
	g := newTestGuard(t)
	ctx := context.Background()
	fp := Fingerprint("POST", "/api/topups", []byte(`{"amount":"10.00"}`))

	dec, err := g.Begin(ctx, "key-1", "acme", fp)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !dec.Proceed {
		t.Fatalf("first Begin should proceed: %+v", dec)
	}
}

func TestSameKeySameFingerprintWhileProcessing(t *testing.T) {
	g := newTestGuard(t)
	ctx := context.Background()
	fp := Fingerprint("POST", "/api/topups", []byte(`{}`))

	if _, err := g.Begin(ctx, "key-1", "acme", fp); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	_, err := g.Begin(ctx, "key-1", "acme", fp)
	var inflight *InFlightError
	if !errors.As(err, &inflight) {
		t.Fatalf("expected InFlightError, got %v", err)
	}
}

func TestSameKeyDifferentFingerprintConflicts(t *testing.T) {
	g := newTestGuard(t)
	ctx := context.Background()

	if _, err := g.Begin(ctx, "key-1", "acme", "fp-a"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	_, err := g.Begin(ctx, "key-1", "acme", "fp-b")
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestCompletedRequestReplays(t *testing.T) {
	g := newTestGuard(t)
	ctx := context.Background()
	fp := "fp-a"

	if _, err := g.Begin(ctx, "key-1", "acme", fp); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := g.Complete(ctx, "key-1", "acme", 201, []byte(`{"id":"t-1"}`)); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	dec, err := g.Begin(ctx, "key-1", "acme", fp)
	if err != nil {
		t.Fatalf("Begin after complete: %v", err)
	}
	if dec.Proceed || dec.Replay == nil {
		t.Fatalf("expected replay decision, got %+v", dec)
	}
	if dec.Replay.ResponseStatus != 201 || string(dec.Replay.ResponseBody) != `{"id":"t-1"}` {
		t.Fatalf("stored response wrong: %+v", dec.Replay)
	}
}

func TestReleaseLockAllowsRetry(t *testing.T) {
	g := newTestGuard(t)
	ctx := context.Background()
	fp := "fp-a"

	if _, err := g.Begin(ctx, "key-1", "acme", fp); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := g.ReleaseLock(ctx, "key-1", "acme"); err != nil {
		t.Fatalf("ReleaseLock: %v", err)
	}
	dec, err := g.Begin(ctx, "key-1", "acme", fp)
	if err != nil || !dec.Proceed {
		t.Fatalf("retry after release should proceed: %+v %v", dec, err)
	}
}

func TestKeysAreTenantScoped(t *testing.T) {
	g := newTestGuard(t)
	ctx := context.Background()

	if _, err := g.Begin(ctx, "key-1", "acme", "fp"); err != nil {
		t.Fatalf("Begin acme: %v", err)
	}
	dec, err := g.Begin(ctx, "key-1", "globex", "fp")
	if err != nil || !dec.Proceed {
		t.Fatalf("same key under another tenant should proceed: %+v %v", dec, err)
	}
}

func TestConcurrentBeginExactlyOneProceeds(t *testing.T) {
	g := newTestGuard(t)
	ctx := context.Background()
	fp := "fp-a"

	const n = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	proceeds, inflights, others := 0, 0, 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec, err := g.Begin(ctx, "key-race", "acme", fp)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && dec.Proceed:
				proceeds++
			case err == nil && dec.Replay != nil:
				others++
			default:
				var inflight *InFlightError
				if errors.As(err, &inflight) {
					inflights++
				} else {
					others++
				}
			}
		}()
	}
	wg.Wait()

	if proceeds != 1 {
		t.Fatalf("exactly one Begin must proceed, got %d (inflight=%d other=%d)", proceeds, inflights, others)
	}
	if inflights != n-1 {
		t.Fatalf("losers should see in-flight, got %d", inflights)
	}
}

func TestProcessingMarkerExpires(t *testing.T) {
	g := NewGuard(mustTestLogger(t), kv.NewMemoryStore(), 20*time.Millisecond, time.Hour)
	ctx := context.Background()

	if _, err := g.Begin(ctx, "key-1", "acme", "fp"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	time.Sleep(40 * time.Millisecond)

	// Crashed holder: the expired marker must not strand the key.
	dec, err := g.Begin(ctx, "key-1", "acme", "fp")
	if err != nil || !dec.Proceed {
		t.Fatalf("Begin after marker expiry should proceed: %+v %v", dec, err)
	}
}

func TestFingerprintDistinguishesIntent(t *testing.T) {
	a := Fingerprint("POST", "/api/topups", []byte(`{"amount":"10.00"}`))
	b := Fingerprint("POST", "/api/topups", []byte(`{"amount":"11.00"}`))
	c := Fingerprint("POST", "/api/withdrawals", []byte(`{"amount":"10.00"}`))
	if a == b || a == c {
		t.Fatalf("fingerprints should differ for different intent")
	}
	if a != Fingerprint("POST", "/api/topups", []byte(`{"amount":"10.00"}`)) {
		t.Fatalf("fingerprint must be stable for identical requests")
	}
}
