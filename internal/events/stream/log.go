package stream

import (
	"context"

	"github.com/offerhub/offerhub-backend/internal/events"
)

// Entry is one persisted event with its log position. Positions are assigned
// by Append, start at 1 and strictly increase.
type Entry struct {
	Position int64              `json:"position"`
	Event    events.DomainEvent `json:"event"`
}

// EventLog is the durable, position-ordered store behind replay. Range is
// exclusive of fromPosition; Trim drops the oldest entries beyond max.
type EventLog interface {
	Append(ctx context.Context, evt events.DomainEvent) (int64, error)
	Range(ctx context.Context, fromPosition int64) ([]Entry, error)
	Count(ctx context.Context) (int64, error)
	Trim(ctx context.Context, max int64) error
}
