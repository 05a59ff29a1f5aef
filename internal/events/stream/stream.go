package stream

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/offerhub/offerhub-backend/internal/events"
	"github.com/offerhub/offerhub-backend/internal/events/bus"
	"github.com/offerhub/offerhub-backend/internal/platform/logger"
)

// Filter restricts what a subscriber receives. Zero values mean "no
// restriction"; matching is null-safe against partially populated events.
type Filter struct {
	TenantID      string
	EventTypes    []string
	ResourceTypes []string
}

// SubscribeRequest opens one client stream. Cursor is the last position the
// client already has: a non-negative integer, an RFC3339 timestamp, or empty/
// garbage, which replays from the start of the retained window.
type SubscribeRequest struct {
	Cursor string
	Filter Filter
}

const liveBuffer = 256

// Stream glues the durable log to the live bus feed. Each emitted event is
// appended to the log, then fanned out to connected clients. A connecting
// client walks CONNECTING -> REPLAYING -> LIVE:
//
//  1. its live buffer is registered before anything else, so events emitted
//     while the history query is in flight land in the buffer instead of
//     being lost;
//  2. the history query runs concurrently with that buffering;
//  3. history is emitted in position order, the buffer is drained with
//     per-event-id dedup against what history already delivered, and from
//     then on live events are forwarded directly.
//
// Subscribing to the bus only after the history query resolves would drop
// every event emitted inside the query window; this layout exists to make
// that impossible.
type Stream struct {
	log    *logger.Logger
	bus    *bus.Bus
	store  EventLog
	retain int64

	mu      sync.Mutex
	nextID  uint64
	clients map[uint64]*client
	busSub  *bus.Subscription
}

type client struct {
	id   uint64
	live chan Entry
}

func New(log *logger.Logger, b *bus.Bus, store EventLog, retain int64) *Stream {
	if retain <= 0 {
		retain = 1000
	}
	return &Stream{
		log:     log.With("component", "EventStream"),
		bus:     b,
		store:   store,
		retain:  retain,
		clients: make(map[uint64]*client),
	}
}

// Start attaches the stream to the bus. Must be called once before clients
// subscribe.
func (s *Stream) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busSub != nil {
		return
	}
	s.busSub = s.bus.Subscribe("*", s.onEvent)
}

// Stop detaches from the bus.
func (s *Stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busSub != nil {
		s.bus.Unsubscribe(s.busSub)
		s.busSub = nil
	}
}

// onEvent runs inside the bus's synchronous fan-out: the event gains its log
// position before Emit returns to the caller.
func (s *Stream) onEvent(ctx context.Context, evt events.DomainEvent) error {
	pos, err := s.store.Append(ctx, evt)
	if err != nil {
		// Live delivery still proceeds; the event just won't replay.
		s.log.Error("event log append failed", "type", evt.EventType, "error", err)
		pos = 0
	}
	entry := Entry{Position: pos, Event: evt}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		select {
		case c.live <- entry:
		default:
			s.log.Warn("dropping stream event; client live buffer full", "client", c.id, "type", evt.EventType)
		}
	}
	return nil
}

// StartTrimmer caps the retained log in the background until ctx ends.
func (s *Stream) StartTrimmer(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.store.Trim(ctx, s.retain); err != nil {
				s.log.Warn("event log trim failed", "error", err)
			}
		}
	}
}

// Subscriber is one client connection. Read from Events until it closes;
// Close (or the subscribe context ending) releases the live buffer.
type Subscriber struct {
	s    *Stream
	id   uint64
	out  chan Entry
	live chan Entry
	done chan struct{}
	once sync.Once
}

func (sub *Subscriber) Events() <-chan Entry { return sub.out }

func (sub *Subscriber) Close() {
	sub.once.Do(func() {
		close(sub.done)
		sub.s.detach(sub.id)
	})
}

// Subscribe registers the client's live buffer immediately (step 1), then
// starts the replay worker. Events delivered on the returned subscriber are
// strictly deduplicated by event id across the replay/live boundary.
func (s *Stream) Subscribe(ctx context.Context, req SubscribeRequest) *Subscriber {
	sub := &Subscriber{
		s:    s,
		out:  make(chan Entry, 64),
		live: make(chan Entry, liveBuffer),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.nextID++
	sub.id = s.nextID
	s.clients[sub.id] = &client{id: sub.id, live: sub.live}
	s.mu.Unlock()

	go sub.run(ctx, req)
	return sub
}

func (s *Stream) detach(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, id)
}

func (sub *Subscriber) run(ctx context.Context, req SubscribeRequest) {
	defer close(sub.out)
	defer sub.Close()

	fromPos, since := parseCursor(req.Cursor)

	// REPLAYING: query history while the live buffer fills.
	histCh := make(chan []Entry, 1)
	go func() {
		entries, err := sub.s.store.Range(ctx, fromPos)
		if err != nil {
			// Best-effort replay: degrade to empty history, keep the
			// connection and the live path alive.
			sub.s.log.Warn("history query failed; replay degraded to empty", "error", err)
			entries = nil
		}
		histCh <- entries
	}()

	var history []Entry
	select {
	case history = <-histCh:
	case <-ctx.Done():
		return
	case <-sub.done:
		return
	}

	seen := make(map[string]struct{}, len(history))
	for _, e := range history {
		if !deliverable(e, req.Filter, since) {
			continue
		}
		seen[e.Event.EventID] = struct{}{}
		if !sub.send(ctx, e) {
			return
		}
	}

	// Drain everything buffered during the query, then go LIVE. The seen set
	// keeps filtering: an event can reach the buffer after the query already
	// returned it as history.
	for {
		select {
		case e := <-sub.live:
			if !sub.forwardLive(ctx, e, req.Filter, since, seen) {
				return
			}
			continue
		default:
		}
		break
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.done:
			return
		case e := <-sub.live:
			if !sub.forwardLive(ctx, e, req.Filter, since, seen) {
				return
			}
		}
	}
}

func (sub *Subscriber) forwardLive(ctx context.Context, e Entry, f Filter, since *time.Time, seen map[string]struct{}) bool {
	if !deliverable(e, f, since) {
		return true
	}
	if _, dup := seen[e.Event.EventID]; dup {
		return true
	}
	return sub.send(ctx, e)
}

func (sub *Subscriber) send(ctx context.Context, e Entry) bool {
	select {
	case sub.out <- e:
		return true
	case <-ctx.Done():
		return false
	case <-sub.done:
		return false
	}
}

// deliverable drops malformed events and applies the client filter without
// assuming any field is populated.
func deliverable(e Entry, f Filter, since *time.Time) bool {
	evt := e.Event
	if evt.EventID == "" || evt.EventType == "" {
		return false
	}
	if since != nil && !evt.OccurredAt.After(*since) {
		return false
	}
	if f.TenantID != "" && evt.Metadata.TenantID != f.TenantID {
		return false
	}
	if len(f.EventTypes) > 0 && !containsString(f.EventTypes, evt.EventType) {
		return false
	}
	if len(f.ResourceTypes) > 0 && !containsString(f.ResourceTypes, evt.AggregateType) {
		return false
	}
	return true
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// parseCursor maps the client cursor to a log position and/or a time lower
// bound. Malformed cursors replay from the start of the retained window
// rather than silently comparing against garbage.
func parseCursor(raw string) (int64, *time.Time) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if pos, err := strconv.ParseInt(raw, 10, 64); err == nil && pos >= 0 {
		return pos, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return 0, &ts
	}
	return 0, nil
}
