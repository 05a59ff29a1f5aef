// Package services holds the funds-orchestration business logic. Each service
// validates input, asserts the lifecycle transition, moves money through the
// ledger where the transition calls for it, persists the new state, and emits
// domain events.
package services

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/offerhub/offerhub-backend/internal/events"
	"github.com/offerhub/offerhub-backend/internal/events/bus"
	"github.com/offerhub/offerhub-backend/internal/platform/ctxutil"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
)

// emit publishes a domain event. Emission never fails the operation that
// produced the state change; a bad draft is logged and dropped.
func emit(ctx context.Context, log *logger.Logger, b *bus.Bus, draft events.Draft) {
	rd := ctxutil.GetRequestData(ctx)
	if draft.Metadata.ActorID == "" && rd != nil {
		draft.Metadata.ActorID = rd.UserID.String()
	}
	if draft.Metadata.TenantID == "" && rd != nil {
		draft.Metadata.TenantID = rd.TenantID
	}
	if _, err := b.Emit(ctx, draft); err != nil {
		log.Warn("event emit failed", "type", draft.Type, "error", err)
	}
}

func toJSON(m map[string]any) datatypes.JSON {
	if len(m) == 0 {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
