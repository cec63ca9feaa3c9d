package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryExpiry(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	m := NewMemory(clock)
	ctx := context.Background()

	m.Set(ctx, "k", "v", time.Minute)
	if v, ok := m.Get(ctx, "k"); !ok || v != "v" {
		t.Fatalf("expected hit, got %q %v", v, ok)
	}

	now = now.Add(time.Minute)
	if _, ok := m.Get(ctx, "k"); ok {
		t.Fatal("entry should have expired at exactly ttl")
	}
}

func TestMemoryDeleteByPattern(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	m.Set(ctx, "dashboard:flights", "1", 0)
	m.Set(ctx, "dashboard:stays", "1", 0)
	m.Set(ctx, "currency:rates", "1", 0)

	m.DeleteByPattern(ctx, "dashboard:*")

	if _, ok := m.Get(ctx, "dashboard:flights"); ok {
		t.Fatal("dashboard:flights should be gone")
	}
	if _, ok := m.Get(ctx, "currency:rates"); !ok {
		t.Fatal("currency:rates should survive")
	}
}

func TestGateCooldown(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	gate := NewGate(NewMemory(clock))
	ctx := context.Background()

	if !gate.Allow(ctx, "cron:flights:lastRun", 5*time.Minute) {
		t.Fatal("first run should pass")
	}
	if gate.Allow(ctx, "cron:flights:lastRun", 5*time.Minute) {
		t.Fatal("second run inside the window should be gated")
	}
	if _, ok := gate.LastRun(ctx, "cron:flights:lastRun"); !ok {
		t.Fatal("last run timestamp should be recorded")
	}

	now = now.Add(6 * time.Minute)
	if !gate.Allow(ctx, "cron:flights:lastRun", 5*time.Minute) {
		t.Fatal("run after the window should pass")
	}
}
