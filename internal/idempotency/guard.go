package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/offerhub/offerhub-backend/internal/kv"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Record is the persisted state of one idempotency key.
type Record struct {
	Status         string          `json:"status"`
	Fingerprint    string          `json:"fingerprint"`
	ResponseStatus int             `json:"response_status,omitempty"`
	ResponseBody   json.RawMessage `json:"response_body,omitempty"`
	ExpiresAt      time.Time       `json:"expires_at"`
}

// ConflictError: same key reused with a different request fingerprint.
type ConflictError struct {
	Key string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("idempotency key %q reused with a different request", e.Key)
}

// InFlightError: same key and fingerprint while the first request is still
// processing.
type InFlightError struct {
	Key string
}

func (e *InFlightError) Error() string {
	return fmt.Sprintf("request with idempotency key %q is already in flight", e.Key)
}

// Decision is the outcome of Begin: either proceed with the request, or
// replay the stored response of an identical completed request.
type Decision struct {
	Proceed bool
	Replay  *Record
}

// Guard makes externally triggered mutations safe to retry. Begin atomically
// claims a processing marker per (key, tenant): under concurrency exactly one
// caller proceeds. The marker carries a TTL bounding maximum request duration
// so a crashed caller cannot strand the key.
type Guard struct {
	log           *logger.Logger
	store         kv.Store
	processingTTL time.Duration
	completedTTL  time.Duration
}

const (
	// DefaultProcessingTTL bounds how long a request may hold the key.
	DefaultProcessingTTL = 30 * time.Second
	// DefaultCompletedTTL is how long completed responses replay.
	DefaultCompletedTTL = 24 * time.Hour
)

func NewGuard(log *logger.Logger, store kv.Store, processingTTL, completedTTL time.Duration) *Guard {
	if processingTTL <= 0 {
		processingTTL = DefaultProcessingTTL
	}
	if completedTTL <= 0 {
		completedTTL = DefaultCompletedTTL
	}
	return &Guard{
		log:           log.With("component", "IdempotencyGuard"),
		store:         store,
		processingTTL: processingTTL,
		completedTTL:  completedTTL,
	}
}

// Fingerprint hashes the request-defining fields so key reuse with different
// intent is distinguishable from a safe retry.
func Fingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func storageKey(key, tenant string) string {
	return tenant + ":" + key
}

func (g *Guard) Begin(ctx context.Context, key, tenant, fingerprint string) (Decision, error) {
	claim := Record{
		Status:      StatusProcessing,
		Fingerprint: fingerprint,
		ExpiresAt:   time.Now().Add(g.processingTTL).UTC(),
	}
	raw, err := json.Marshal(claim)
	if err != nil {
		return Decision{}, err
	}

	won, err := g.store.SetNX(ctx, storageKey(key, tenant), raw, g.processingTTL)
	if err != nil {
		return Decision{}, err
	}
	if won {
		return Decision{Proceed: true}, nil
	}

	existingRaw, err := g.store.Get(ctx, storageKey(key, tenant))
	if errors.Is(err, kv.ErrNotFound) {
		// The holder finished (or expired) between our SetNX and Get; treat
		// as a fresh claim.
		won, err := g.store.SetNX(ctx, storageKey(key, tenant), raw, g.processingTTL)
		if err != nil {
			return Decision{}, err
		}
		if won {
			return Decision{Proceed: true}, nil
		}
		return Decision{}, &InFlightError{Key: key}
	}
	if err != nil {
		return Decision{}, err
	}

	var existing Record
	if err := json.Unmarshal(existingRaw, &existing); err != nil {
		return Decision{}, fmt.Errorf("idempotency record corrupt: %w", err)
	}
	if existing.Fingerprint != fingerprint {
		return Decision{}, &ConflictError{Key: key}
	}
	if existing.Status == StatusProcessing {
		return Decision{}, &InFlightError{Key: key}
	}
	return Decision{Replay: &existing}, nil
}

// Complete stores the response for replay and releases the processing claim
// in the same write.
func (g *Guard) Complete(ctx context.Context, key, tenant string, responseStatus int, responseBody []byte) error {
	status := StatusCompleted
	if responseStatus >= 400 {
		status = StatusFailed
	}
	rec := Record{
		Status:         status,
		Fingerprint:    g.currentFingerprint(ctx, key, tenant),
		ResponseStatus: responseStatus,
		ResponseBody:   append([]byte(nil), responseBody...),
		ExpiresAt:      time.Now().Add(g.completedTTL).UTC(),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return g.store.Set(ctx, storageKey(key, tenant), raw, g.completedTTL)
}

// ReleaseLock drops the processing marker so the client can retry. Mandatory
// on failure paths that produced no replayable response.
func (g *Guard) ReleaseLock(ctx context.Context, key, tenant string) error {
	return g.store.Del(ctx, storageKey(key, tenant))
}

func (g *Guard) currentFingerprint(ctx context.Context, key, tenant string) string {
	raw, err := g.store.Get(ctx, storageKey(key, tenant))
	if err != nil {
		return ""
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return ""
	}
	return rec.Fingerprint
}
