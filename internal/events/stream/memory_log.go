package stream

import (
	"context"
	"sync"

	"github.com/offerhub/offerhub-backend/internal/events"
)

// memoryLog is the process-local EventLog used by tests and single-node dev
// runs. Same contract as the redis log, including exclusive-from Range.
type memoryLog struct {
	mu      sync.Mutex
	nextPos int64
	entries []Entry
}

func NewMemoryLog() EventLog {
	return &memoryLog{}
}

func (l *memoryLog) Append(ctx context.Context, evt events.DomainEvent) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextPos++
	l.entries = append(l.entries, Entry{Position: l.nextPos, Event: evt})
	return l.nextPos, nil
}

func (l *memoryLog) Range(ctx context.Context, fromPosition int64) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, e := range l.entries {
		if e.Position > fromPosition {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *memoryLog) Count(ctx context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.entries)), nil
}

func (l *memoryLog) Trim(ctx context.Context, max int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if max <= 0 || int64(len(l.entries)) <= max {
		return nil
	}
	drop := int64(len(l.entries)) - max
	l.entries = append([]Entry(nil), l.entries[drop:]...)
	return nil
}
