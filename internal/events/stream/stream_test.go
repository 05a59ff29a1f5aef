package stream

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/offerhub/offerhub-backend/internal/events"
	"github.com/offerhub/offerhub-backend/internal/events/bus"
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

// slowLog delays Range to widen the historical-query window.
type slowLog struct {
	EventLog
	delay time.Duration
}

func (l *slowLog) Range(ctx context.Context, fromPosition int64) ([]Entry, error) {
	time.Sleep(l.delay)
	return l.EventLog.Range(ctx, fromPosition)
}

// failingLog rejects every query.
type failingLog struct {
	EventLog
}

func (l *failingLog) Range(ctx context.Context, fromPosition int64) ([]Entry, error) {
	return nil, errors.New("log unavailable")
}

func recvEntry(t *testing.T, ch <-chan Entry, timeout time.Duration) Entry {
	t.Helper()
	select {
	case e, ok := <-ch:
		if !ok {
			t.Fatalf("stream closed while waiting for entry")
		}
		return e
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for stream entry")
	}
	return Entry{}
}

func collect(ch <-chan Entry, n int, timeout time.Duration) []Entry {
	var out []Entry
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-deadline:
			return out
		}
	}
	return out
}

func emit(t *testing.T, b *bus.Bus, eventType, aggregateID string) events.DomainEvent {
	t.Helper()
	evt, err := b.Emit(context.Background(), events.Draft{
		Type:          eventType,
		AggregateID:   aggregateID,
		AggregateType: "order",
	})
	if err != nil {
		t.Fatalf("Emit(%s): %v", eventType, err)
	}
	return evt
}

// The regression the component exists for: an event emitted while the
// historical query is still in flight must reach the client exactly once,
// alongside the history and every later live event.
func TestReplayLiveBoundaryNoLossNoDuplicates(t *testing.T) {
	log := mustTestLogger(t)
	b := bus.New(log)
	s := New(log, b, &slowLog{EventLog: NewMemoryLog(), delay: 200 * time.Millisecond}, 1000)
	s.Start()
	defer s.Stop()

	h1 := emit(t, b, events.TypeOrderCreated, "o1")
	h2 := emit(t, b, events.TypeOrderFundsReserved, "o1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := s.Subscribe(ctx, SubscribeRequest{})
	defer sub.Close()

	// Emitted during the query window: lands in the live buffer and, because
	// the query snapshot is taken when the delay elapses, in history too.
	time.Sleep(100 * time.Millisecond)
	during := emit(t, b, events.TypeOrderEscrowCreating, "o1")

	// Emitted after replay resolved: pure live path.
	time.Sleep(200 * time.Millisecond)
	after := emit(t, b, events.TypeOrderEscrowFunding, "o1")

	got := collect(sub.Events(), 4, 2*time.Second)
	if len(got) != 4 {
		t.Fatalf("expected 4 events, got %d: %+v", len(got), got)
	}

	counts := map[string]int{}
	for _, e := range got {
		counts[e.Event.EventID]++
	}
	for _, want := range []events.DomainEvent{h1, h2, during, after} {
		if counts[want.EventID] != 1 {
			t.Fatalf("event %s (%s) delivered %d times", want.EventID, want.EventType, counts[want.EventID])
		}
	}

	// History must arrive in position order.
	for i := 1; i < len(got); i++ {
		if got[i].Position <= got[i-1].Position {
			t.Fatalf("positions out of order: %d then %d", got[i-1].Position, got[i].Position)
		}
	}

	// Nothing further should arrive.
	select {
	case e := <-sub.Events():
		t.Fatalf("unexpected extra event %s", e.Event.EventID)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestCursorBoundsReplay(t *testing.T) {
	log := mustTestLogger(t)
	b := bus.New(log)
	s := New(log, b, NewMemoryLog(), 1000)
	s.Start()
	defer s.Stop()

	emit(t, b, events.TypeOrderCreated, "o1")
	emit(t, b, events.TypeOrderFundsReserved, "o1")
	third := emit(t, b, events.TypeOrderEscrowCreating, "o1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := s.Subscribe(ctx, SubscribeRequest{Cursor: "2"})
	defer sub.Close()

	e := recvEntry(t, sub.Events(), time.Second)
	if e.Event.EventID != third.EventID {
		t.Fatalf("cursor 2 should replay only position 3, got %s at %d", e.Event.EventType, e.Position)
	}
}

func TestMalformedCursorReplaysFromStart(t *testing.T) {
	log := mustTestLogger(t)
	b := bus.New(log)
	s := New(log, b, NewMemoryLog(), 1000)
	s.Start()
	defer s.Stop()

	first := emit(t, b, events.TypeOrderCreated, "o1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := s.Subscribe(ctx, SubscribeRequest{Cursor: "not-a-cursor"})
	defer sub.Close()

	e := recvEntry(t, sub.Events(), time.Second)
	if e.Event.EventID != first.EventID {
		t.Fatalf("garbage cursor should replay the retained window, got %+v", e.Event)
	}
}

func TestHistoryQueryFailureDegradesToLiveOnly(t *testing.T) {
	log := mustTestLogger(t)
	b := bus.New(log)
	s := New(log, b, &failingLog{EventLog: NewMemoryLog()}, 1000)
	s.Start()
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := s.Subscribe(ctx, SubscribeRequest{})
	defer sub.Close()

	time.Sleep(50 * time.Millisecond)
	live := emit(t, b, events.TypeTopUpSucceeded, "t1")

	e := recvEntry(t, sub.Events(), time.Second)
	if e.Event.EventID != live.EventID {
		t.Fatalf("live delivery should survive a failing log, got %+v", e.Event)
	}
}

func TestFiltersAreNullSafe(t *testing.T) {
	log := mustTestLogger(t)
	b := bus.New(log)
	s := New(log, b, NewMemoryLog(), 1000)
	s.Start()
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := s.Subscribe(ctx, SubscribeRequest{Filter: Filter{
		TenantID:   "acme",
		EventTypes: []string{events.TypeOrderCreated},
	}})
	defer sub.Close()
	time.Sleep(50 * time.Millisecond)

	// No metadata at all: must be filtered out, not panic.
	_, err := b.Emit(ctx, events.Draft{Type: events.TypeOrderCreated})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	// Wrong type, right tenant.
	_, err = b.Emit(ctx, events.Draft{Type: events.TypeOrderClosed, Metadata: events.Metadata{TenantID: "acme"}})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	match, err := b.Emit(ctx, events.Draft{Type: events.TypeOrderCreated, Metadata: events.Metadata{TenantID: "acme"}})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	e := recvEntry(t, sub.Events(), time.Second)
	if e.Event.EventID != match.EventID {
		t.Fatalf("filter delivered the wrong event: %+v", e.Event)
	}
}

func TestMalformedEventIsDroppedNotThrown(t *testing.T) {
	log := mustTestLogger(t)
	b := bus.New(log)
	s := New(log, b, NewMemoryLog(), 1000)
	s.Start()
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := s.Subscribe(ctx, SubscribeRequest{})
	defer sub.Close()
	time.Sleep(50 * time.Millisecond)

	// Inject a partially populated event below the bus's own validation.
	if err := s.onEvent(ctx, events.DomainEvent{EventID: "evt-without-type"}); err != nil {
		t.Fatalf("onEvent: %v", err)
	}
	ok := emit(t, b, events.TypeOrderCreated, "o1")

	e := recvEntry(t, sub.Events(), time.Second)
	if e.Event.EventID != ok.EventID {
		t.Fatalf("malformed event should be dropped silently, got %+v", e.Event)
	}
}

func TestTrimKeepsNewestAndReplayStaysContiguous(t *testing.T) {
	log := mustTestLogger(t)
	b := bus.New(log)
	mem := NewMemoryLog()
	s := New(log, b, mem, 5)
	s.Start()
	defer s.Stop()

	ctx := context.Background()
	for i := 0; i < 8; i++ {
		emit(t, b, events.TypeOrderCreated, fmt.Sprintf("o%d", i))
	}
	if err := mem.Trim(ctx, 5); err != nil {
		t.Fatalf("Trim: %v", err)
	}
	count, err := mem.Count(ctx)
	if err != nil || count != 5 {
		t.Fatalf("Count after trim: %d err=%v", count, err)
	}

	// An out-of-range cursor gets the truncated-but-contiguous tail, not an
	// error.
	entries, err := mem.Range(ctx, 1)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected the 5 retained entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Position != entries[i-1].Position+1 {
			t.Fatalf("retained window not contiguous: %d then %d", entries[i-1].Position, entries[i].Position)
		}
	}
}

func TestDisconnectDetachesClient(t *testing.T) {
	log := mustTestLogger(t)
	b := bus.New(log)
	s := New(log, b, NewMemoryLog(), 1000)
	s.Start()
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	sub := s.Subscribe(ctx, SubscribeRequest{})
	time.Sleep(50 * time.Millisecond)
	cancel()
	sub.Close()
	time.Sleep(50 * time.Millisecond)

	s.mu.Lock()
	n := len(s.clients)
	s.mu.Unlock()
	if n != 0 {
		t.Fatalf("disconnected client still registered: %d", n)
	}
}
