package events

import (
	"time"
)

// Metadata links an event to its trigger and actor.
type Metadata struct {
	CorrelationID string `json:"correlation_id,omitempty"`
	CausationID   string `json:"causation_id,omitempty"`
	ActorID       string `json:"actor_id,omitempty"`
	TenantID      string `json:"tenant_id,omitempty"`
}

// Draft is what callers hand to the bus. The bus fills in identity and time.
type Draft struct {
	Type          string
	AggregateID   string
	AggregateType string
	Payload       map[string]any
	Metadata      Metadata
}

// DomainEvent is the immutable emitted record. EventID is a UUIDv7, so ids
// sort in emission order.
type DomainEvent struct {
	EventID       string         `json:"event_id"`
	EventType     string         `json:"event_type"`
	OccurredAt    time.Time      `json:"occurred_at"`
	AggregateID   string         `json:"aggregate_id"`
	AggregateType string         `json:"aggregate_type"`
	Payload       map[string]any `json:"payload,omitempty"`
	Metadata      Metadata       `json:"metadata"`
}
