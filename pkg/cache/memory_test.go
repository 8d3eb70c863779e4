package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(10))
	defer mc.Close()
	ctx := context.Background()

	type payload struct {
		Signal string  `json:"signal"`
		Vol    float64 `json:"vol"`
	}

	if err := mc.Set(ctx, "latest", payload{Signal: "STRONG_BUY", Vol: 0.002}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got payload
	if err := mc.Get(ctx, "latest", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Signal != "STRONG_BUY" || got.Vol != 0.002 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()

	var dest string
	err := mc.Get(context.Background(), "absent", &dest)
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", "v", time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	var dest string
	if err := mc.Get(ctx, "k", &dest); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expiry miss, got %v", err)
	}
}

func TestMemoryCacheEvictsLRU(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	mc.Set(ctx, "a", 1, time.Minute)
	time.Sleep(time.Millisecond)
	mc.Set(ctx, "b", 2, time.Minute)
	time.Sleep(time.Millisecond)
	mc.Set(ctx, "c", 3, time.Minute)

	if ok, _ := mc.Exists(ctx, "a"); ok {
		t.Fatalf("oldest key should have been evicted")
	}
	if ok, _ := mc.Exists(ctx, "c"); !ok {
		t.Fatalf("newest key should survive")
	}
}
