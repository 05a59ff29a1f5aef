package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type requestDataKey struct{}

// RequestData carries the authenticated caller identity through the request
// context. TenantID is the marketplace tenant the caller operates under.
type RequestData struct {
	UserID   uuid.UUID
	TenantID string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	rd, _ := ctx.Value(requestDataKey{}).(*RequestData)
	return rd
}

func UserID(ctx context.Context) uuid.UUID {
	if rd := GetRequestData(ctx); rd != nil {
		return rd.UserID
	}
	return uuid.Nil
}

func TenantID(ctx context.Context) string {
	if rd := GetRequestData(ctx); rd != nil {
		return rd.TenantID
	}
	return ""
}
