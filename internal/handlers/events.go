package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/offerhub/offerhub-backend/internal/events/stream"
	"github.com/offerhub/offerhub-backend/internal/platform/ctxutil"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
)

const heartbeatInterval = 15 * time.Second

// EventStreamHandler serves the replay-then-live event feed over SSE. The
// cursor comes from either the Last-Event-ID header (browser reconnect) or
// the cursor query parameter.
type EventStreamHandler struct {
	log    *logger.Logger
	stream *stream.Stream
}

func NewEventStreamHandler(log *logger.Logger, s *stream.Stream) *EventStreamHandler {
	return &EventStreamHandler{
		log:    log.With("handler", "EventStreamHandler"),
		stream: s,
	}
}

func (h *EventStreamHandler) Stream(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		RespondError(c, http.StatusInternalServerError, "streaming_unsupported", nil)
		return
	}

	cursor := c.GetHeader("Last-Event-ID")
	if cursor == "" {
		cursor = c.Query("cursor")
	}
	sub := h.stream.Subscribe(c.Request.Context(), stream.SubscribeRequest{
		Cursor: cursor,
		Filter: stream.Filter{
			TenantID:      rd.TenantID,
			EventTypes:    splitParam(c.Query("types")),
			ResourceTypes: splitParam(c.Query("resources")),
		},
	})
	defer sub.Close()

	h.log.Info("event stream open", "user_id", rd.UserID, "cursor", cursor)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			flusher.Flush()
		case entry, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(entry.Event)
			if err != nil {
				h.log.Warn("event marshal failed", "event_id", entry.Event.EventID, "error", err)
				continue
			}
			fmt.Fprintf(c.Writer, "id: %s\nevent: %s\ndata: %s\n\n",
				strconv.FormatInt(entry.Position, 10), entry.Event.EventType, data)
			flusher.Flush()
		}
	}
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
