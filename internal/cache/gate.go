package cache

import (
	"context"
	"strconv"
	"time"
)

// Gate prevents overlapping orchestration runs within a cooldown window. The
// check-then-set is not atomic: two triggers racing inside the window may both
// pass, which the at-least-once delivery contract tolerates. A cache failure
// lets the run proceed.
type Gate struct {
	cache Cache
}

// NewGate wraps a cache into a run gate.
func NewGate(c Cache) *Gate {
	return &Gate{cache: c}
}

// Allow reports whether a run keyed by key may proceed, and marks the run
// start for the cooldown window on success.
func (g *Gate) Allow(ctx context.Context, key string, ttl time.Duration) bool {
	if _, held := g.cache.Get(ctx, key); held {
		return false
	}
	g.cache.Set(ctx, key, strconv.FormatInt(time.Now().UnixMilli(), 10), ttl)
	return true
}

// LastRun returns the recorded start time of the most recent gated run.
func (g *Gate) LastRun(ctx context.Context, key string) (time.Time, bool) {
	value, ok := g.cache.Get(ctx, key)
	if !ok {
		return time.Time{}, false
	}
	millis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}
