package kv

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreSetNXClaimsOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ok, err := store.SetNX(ctx, "k", []byte("first"), time.Minute)
	if err != nil || !ok {
		t.Fatalf("first SetNX: ok=%v err=%v", ok, err)
	}
	ok, err = store.SetNX(ctx, "k", []byte("second"), time.Minute)
	if err != nil || ok {
		t.Fatalf("second SetNX should lose: ok=%v err=%v", ok, err)
	}
	got, err := store.Get(ctx, "k")
	if err != nil || string(got) != "first" {
		t.Fatalf("Get: got=%q err=%v", got, err)
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.SetNX(ctx, "k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("SetNX: %v", err)
	}
	time.Sleep(25 * time.Millisecond)
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
	// Expired key is claimable again.
	ok, err := store.SetNX(ctx, "k", []byte("v2"), time.Minute)
	if err != nil || !ok {
		t.Fatalf("SetNX after expiry: ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreDel(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Set(ctx, "k", []byte("v"), 0)
	if err := store.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after Del, got %v", err)
	}
}
