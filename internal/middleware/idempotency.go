package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/offerhub/offerhub-backend/internal/idempotency"
	"github.com/offerhub/offerhub-backend/internal/platform/ctxutil"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
)

const idempotencyKeyHeader = "Idempotency-Key"

type IdempotencyMiddleware struct {
	log   *logger.Logger
	guard *idempotency.Guard
}

func NewIdempotencyMiddleware(log *logger.Logger, guard *idempotency.Guard) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{
		log:   log.With("middleware", "IdempotencyMiddleware"),
		guard: guard,
	}
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Guard replays the stored response for retried requests carrying an
// Idempotency-Key. Requests without the header pass straight through.
func (im *IdempotencyMiddleware) Guard() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(idempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		tenant := ctxutil.TenantID(ctx)

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		// The concrete URL path, not the route template: two requests hitting
		// the same route for different resources must not share a fingerprint.
		fp := idempotency.Fingerprint(c.Request.Method, c.Request.URL.Path, body)
		decision, err := im.guard.Begin(ctx, key, tenant, fp)
		if err != nil {
			var conflict *idempotency.ConflictError
			var inflight *idempotency.InFlightError
			switch {
			case errors.As(err, &conflict):
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "idempotency key reused with a different request"})
			case errors.As(err, &inflight):
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request already in flight"})
			default:
				im.log.Error("idempotency begin failed", "key", key, "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}

		if decision.Replay != nil {
			im.log.Info("replaying stored response", "key", key, "status", decision.Replay.ResponseStatus)
			c.Header("Idempotent-Replayed", "true")
			c.Data(decision.Replay.ResponseStatus, "application/json", decision.Replay.ResponseBody)
			c.Abort()
			return
		}

		writer := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		status := writer.Status()
		if status >= http.StatusInternalServerError {
			// No replayable outcome was produced; free the key for a retry.
			if err := im.guard.ReleaseLock(ctx, key, tenant); err != nil {
				im.log.Error("idempotency release failed", "key", key, "error", err)
			}
			return
		}
		if err := im.guard.Complete(ctx, key, tenant, status, writer.body.Bytes()); err != nil {
			im.log.Error("idempotency complete failed", "key", key, "error", err)
		}
	}
}
