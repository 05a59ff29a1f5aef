package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("kv: key not found")

// Store is the minimal contract the idempotency guard and webhook dedup need:
// TTL expiry plus an atomic create-if-absent.
type Store interface {
	// SetNX writes value only if key is absent. Reports whether the write won.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Set writes value unconditionally.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, key string) error
}
