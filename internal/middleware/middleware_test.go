package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/offerhub/offerhub-backend/internal/idempotency"
	"github.com/offerhub/offerhub-backend/internal/kv"
	"github.com/offerhub/offerhub-backend/internal/platform/ctxutil"
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

func signToken(t *testing.T, secret string, userID uuid.UUID, tenant string) string {
	t.Helper()
	claims := accessClaims{
		TenantID: tenant,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestRequireAuthPopulatesRequestData(t *testing.T) {
	gin.SetMode(gin.TestMode)
	am := NewAuthMiddleware(mustTestLogger(t), "secret")
	userID := uuid.New()

	router := gin.New()
	router.GET("/me", am.RequireAuth(), func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		if rd == nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": rd.UserID, "tenant_id": rd.TenantID})
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "secret", userID, "acme"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(userID.String())) {
		t.Fatalf("user id missing from response: %s", rec.Body.String())
	}
}

func TestRequireAuthRejectsMissingAndForgedTokens(t *testing.T) {
	gin.SetMode(gin.TestMode)
	am := NewAuthMiddleware(mustTestLogger(t), "secret")

	router := gin.New()
	router.GET("/me", am.RequireAuth(), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "wrong-secret", uuid.New(), ""))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged token: status = %d", rec.Code)
	}
}

func TestRequireAuthAcceptsQueryToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	am := NewAuthMiddleware(mustTestLogger(t), "secret")

	router := gin.New()
	router.GET("/stream", am.RequireAuth(), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/stream?token="+signToken(t, "secret", uuid.New(), ""), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("query token: status = %d", rec.Code)
	}
}

func newIdempotentRouter(t *testing.T, calls *int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := mustTestLogger(t)
	im := NewIdempotencyMiddleware(log, idempotency.NewGuard(log, kv.NewMemoryStore(), time.Minute, time.Hour))

	router := gin.New()
	router.POST("/api/topups", im.Guard(), func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusCreated, gin.H{"id": *calls})
	})
	return router
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	calls := 0
	router := newIdempotentRouter(t, &calls)
	body := `{"amount":"10.00"}`

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/topups", bytes.NewBufferString(body))
		req.Header.Set(idempotencyKeyHeader, "key-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("first: status = %d", first.Code)
	}
	second := send()
	if second.Code != http.StatusCreated {
		t.Fatalf("second: status = %d", second.Code)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("second response not marked replayed")
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replayed body differs: %s vs %s", first.Body.String(), second.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times", calls)
	}
}

func TestIdempotencyKeyReuseWithDifferentBodyConflicts(t *testing.T) {
	calls := 0
	router := newIdempotentRouter(t, &calls)

	req := httptest.NewRequest(http.MethodPost, "/api/topups", bytes.NewBufferString(`{"amount":"10.00"}`))
	req.Header.Set(idempotencyKeyHeader, "key-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/topups", bytes.NewBufferString(`{"amount":"99.00"}`))
	req.Header.Set(idempotencyKeyHeader, "key-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("reuse: status = %d", rec.Code)
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times", calls)
	}
}

func TestIdempotencyKeyReuseOnDifferentResourceConflicts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := mustTestLogger(t)
	im := NewIdempotencyMiddleware(log, idempotency.NewGuard(log, kv.NewMemoryStore(), time.Minute, time.Hour))

	released := map[string]int{}
	router := gin.New()
	router.POST("/api/orders/:id/release", im.Guard(), func(c *gin.Context) {
		released[c.Param("id")]++
		c.JSON(http.StatusOK, gin.H{"order": c.Param("id")})
	})

	send := func(id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/orders/"+id+"/release", nil)
		req.Header.Set(idempotencyKeyHeader, "key-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	if rec := send("ord-1"); rec.Code != http.StatusOK {
		t.Fatalf("first: status = %d", rec.Code)
	}
	// Same key, same route, different order: a distinct request, not a replay.
	rec := send("ord-2")
	if rec.Code != http.StatusConflict {
		t.Fatalf("key reuse on a different order: status = %d body = %s", rec.Code, rec.Body.String())
	}
	if released["ord-1"] != 1 || released["ord-2"] != 0 {
		t.Fatalf("release counts = %v", released)
	}
}

func TestIdempotencySkippedWithoutKey(t *testing.T) {
	calls := 0
	router := newIdempotentRouter(t, &calls)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/topups", bytes.NewBufferString(`{}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("handler ran %d times without keys", calls)
	}
}

func TestIdempotencyServerErrorFreesKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := mustTestLogger(t)
	im := NewIdempotencyMiddleware(log, idempotency.NewGuard(log, kv.NewMemoryStore(), time.Minute, time.Hour))

	calls := 0
	router := gin.New()
	router.POST("/api/topups", im.Guard(), func(c *gin.Context) {
		calls++
		if calls == 1 {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/topups", bytes.NewBufferString(`{}`))
		req.Header.Set(idempotencyKeyHeader, "key-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(); rec.Code != http.StatusInternalServerError {
		t.Fatalf("first: status = %d", rec.Code)
	}
	// A 5xx stores nothing; the retry must reach the handler again.
	if rec := send(); rec.Code != http.StatusCreated {
		t.Fatalf("retry: status = %d", rec.Code)
	}
	if calls != 2 {
		t.Fatalf("handler ran %d times", calls)
	}
}
