package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/offerhub/offerhub-backend/internal/events"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
)

// Handler receives one event. Errors (and panics) are logged at the bus
// boundary and never reach the emitter.
type Handler func(ctx context.Context, evt events.DomainEvent) error

// Subscription is the handle returned by Subscribe; pass it back to
// Unsubscribe to detach exactly that handler.
type Subscription struct {
	id      uint64
	pattern string
	handler Handler
}

// Bus is an in-process typed publish/subscribe with dot-namespaced topics.
// Subscriptions live in a pattern map owned by the instance; there is no
// package-level listener state.
type Bus struct {
	mu     sync.RWMutex
	log    *logger.Logger
	nextID uint64
	subs   map[string]map[uint64]*Subscription
}

func New(log *logger.Logger) *Bus {
	return &Bus{
		log:  log.With("component", "EventBus"),
		subs: make(map[string]map[uint64]*Subscription),
	}
}

// Subscribe registers handler for every event whose type matches pattern.
// Patterns: an exact type, a segment wildcard ("order.*" matches any single
// next segment), or a bare "*" for everything.
func (b *Bus) Subscribe(pattern string, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{id: b.nextID, pattern: pattern, handler: handler}
	group, ok := b.subs[pattern]
	if !ok {
		group = make(map[uint64]*Subscription)
		b.subs[pattern] = group
	}
	group[sub.id] = sub
	return sub
}

func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if group, ok := b.subs[sub.pattern]; ok {
		delete(group, sub.id)
		if len(group) == 0 {
			delete(b.subs, sub.pattern)
		}
	}
}

// Emit stamps the draft with identity and time and fans it out synchronously
// to every matching subscriber. Emitter-level failures (empty type,
// unserializable payload, id generation) are returned to the caller;
// subscriber failures are logged and swallowed.
func (b *Bus) Emit(ctx context.Context, draft events.Draft) (events.DomainEvent, error) {
	if strings.TrimSpace(draft.Type) == "" {
		return events.DomainEvent{}, fmt.Errorf("emit: empty event type")
	}
	if draft.Payload != nil {
		if _, err := json.Marshal(draft.Payload); err != nil {
			return events.DomainEvent{}, fmt.Errorf("emit %s: payload not serializable: %w", draft.Type, err)
		}
	}
	id, err := uuid.NewV7()
	if err != nil {
		return events.DomainEvent{}, fmt.Errorf("emit %s: event id: %w", draft.Type, err)
	}
	if !events.InCatalog(draft.Type) {
		b.log.Warn("emitting event type outside catalog", "type", draft.Type)
	}

	evt := events.DomainEvent{
		EventID:       id.String(),
		EventType:     draft.Type,
		OccurredAt:    time.Now().UTC(),
		AggregateID:   draft.AggregateID,
		AggregateType: draft.AggregateType,
		Payload:       draft.Payload,
		Metadata:      draft.Metadata,
	}

	for _, sub := range b.matching(evt.EventType) {
		b.dispatch(ctx, sub, evt)
	}
	return evt, nil
}

func (b *Bus) matching(eventType string) []*Subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*Subscription
	for pattern, group := range b.subs {
		if !matchPattern(pattern, eventType) {
			continue
		}
		for _, sub := range group {
			out = append(out, sub)
		}
	}
	return out
}

func (b *Bus) dispatch(ctx context.Context, sub *Subscription, evt events.DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked", "pattern", sub.pattern, "type", evt.EventType, "panic", r)
		}
	}()
	if err := sub.handler(ctx, evt); err != nil {
		b.log.Warn("event handler failed", "pattern", sub.pattern, "type", evt.EventType, "error", err)
	}
}

func matchPattern(pattern, eventType string) bool {
	if pattern == "*" {
		return true
	}
	ps := strings.Split(pattern, ".")
	es := strings.Split(eventType, ".")
	if len(ps) != len(es) {
		return false
	}
	for i := range ps {
		if ps[i] == "*" {
			continue
		}
		if ps[i] != es[i] {
			return false
		}
	}
	return true
}
