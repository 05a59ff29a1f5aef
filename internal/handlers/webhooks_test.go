package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/offerhub/offerhub-backend/internal/kv"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
	"github.com/offerhub/offerhub-backend/internal/types"
	"github.com/offerhub/offerhub-backend/internal/webhooks"
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

type stubTopUps struct{ calls int }

func (s *stubTopUps) HandleProviderStatus(ctx context.Context, providerRef, status string) (*types.TopUp, error) {
	s.calls++
	return &types.TopUp{ID: uuid.New(), ProviderRef: providerRef, Status: status}, nil
}

type stubWithdrawals struct{}

func (stubWithdrawals) HandleProviderStatus(ctx context.Context, providerRef, status string) (*types.Withdrawal, error) {
	return &types.Withdrawal{ID: uuid.New(), ProviderRef: providerRef, Status: status}, nil
}

type stubEscrows struct{}

func (stubEscrows) HandleEscrowStatus(ctx context.Context, providerRef, status string) (*types.Escrow, error) {
	return &types.Escrow{ID: uuid.New(), ProviderRef: providerRef, Status: status}, nil
}

func newWebhookRouter(t *testing.T, topups *stubTopUps) (*gin.Engine, *webhooks.Verifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := mustTestLogger(t)
	mapper, err := webhooks.NewStatusMapper()
	if err != nil {
		t.Fatalf("NewStatusMapper: %v", err)
	}
	verifier := webhooks.NewVerifier("whsec_test", 0)
	ingestor := webhooks.NewIngestor(log, verifier, kv.NewMemoryStore(), mapper,
		topups, stubWithdrawals{}, stubEscrows{})

	router := gin.New()
	router.POST("/api/webhooks/payments", NewWebhookHandler(log, ingestor).HandlePayments)
	return router, verifier
}

func signedRequest(v *webhooks.Verifier, id string, body []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payments", bytes.NewReader(body))
	now := time.Now()
	req.Header.Set("webhook-id", id)
	req.Header.Set("webhook-timestamp", strconv.FormatInt(now.Unix(), 10))
	req.Header.Set("webhook-signature", v.Sign(id, now, body))
	return req
}

func TestWebhookEndpointProcessesSignedDelivery(t *testing.T) {
	topups := &stubTopUps{}
	router, verifier := newWebhookRouter(t, topups)
	body := []byte(`{"resource_type":"topup","provider_ref":"pi_1","status":"succeeded"}`)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(verifier, "evt_1", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["processed"] != true || resp["duplicate"] != false {
		t.Fatalf("unexpected response: %v", resp)
	}
	if topups.calls != 1 {
		t.Fatalf("topup service calls = %d", topups.calls)
	}
}

func TestWebhookEndpointRejectsBadSignatureWith401(t *testing.T) {
	router, verifier := newWebhookRouter(t, &stubTopUps{})
	body := []byte(`{"resource_type":"topup","provider_ref":"pi_1","status":"succeeded"}`)

	req := signedRequest(verifier, "evt_1", body)
	req.Header.Set("webhook-signature", "v1,Zm9yZ2Vk")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWebhookEndpointReportsDuplicateWith200(t *testing.T) {
	topups := &stubTopUps{}
	router, verifier := newWebhookRouter(t, topups)
	body := []byte(`{"resource_type":"topup","provider_ref":"pi_1","status":"succeeded"}`)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(verifier, "evt_1", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("first delivery: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(verifier, "evt_1", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("replay: status = %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["duplicate"] != true || resp["processed"] != false {
		t.Fatalf("replay response: %v", resp)
	}
	if topups.calls != 1 {
		t.Fatalf("replay reached the service, calls = %d", topups.calls)
	}
}

func TestWebhookEndpointBusinessRejectionIs200(t *testing.T) {
	router, verifier := newWebhookRouter(t, &stubTopUps{})
	body := []byte(`{"resource_type":"topup","provider_ref":"pi_1","status":"teleported"}`)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(verifier, "evt_1", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["status"] != "rejected" || resp["processed"] != false {
		t.Fatalf("rejection response: %v", resp)
	}
}
