package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*MemoryLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter()
	l.now = clock.now
	return l, clock
}

func TestMemoryLimiterAllow(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLimiter()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(ctx, "collab:u1", 3, 10*time.Minute), "expected hit %d to be allowed", i+1)
	}
	assert.False(t, l.Allow(ctx, "collab:u1", 3, 10*time.Minute), "expected fourth hit to be denied")
	assert.True(t, l.Allow(ctx, "collab:u2", 3, 10*time.Minute), "expected other keys to be independent")

	clock.advance(9 * time.Minute)
	assert.False(t, l.Allow(ctx, "collab:u1", 3, 10*time.Minute), "expected window to still be full")

	clock.advance(time.Minute)
	assert.True(t, l.Allow(ctx, "collab:u1", 3, 10*time.Minute), "expected a new window after expiry")
	assert.Equal(t, 1, l.windows["collab:u1"].count, "expected the new window to start at one hit")
}

func TestMemoryLimiterDeniedHitsDoNotCount(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter()

	l.Allow(ctx, "k", 1, time.Minute)
	for n := 0; n < 5; n++ {
		l.Allow(ctx, "k", 1, time.Minute)
	}
	assert.Equal(t, 1, l.windows["k"].count, "expected denials to leave the counter alone")
}

func TestMemoryLimiterNonPositiveLimit(t *testing.T) {
	l, _ := newTestLimiter()
	for n := 0; n < 10; n++ {
		assert.True(t, l.Allow(context.Background(), "k", 0, time.Minute), "expected a zero limit to disable limiting")
	}
}

func TestMemoryLimiterAllowPair(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLimiter()

	assert.True(t, l.AllowPair(ctx, "a", "b", 2*time.Minute), "expected first contact to be allowed")
	assert.False(t, l.AllowPair(ctx, "a", "b", 2*time.Minute), "expected cooldown to deny")
	assert.True(t, l.AllowPair(ctx, "b", "a", 2*time.Minute), "expected the reverse direction to be independent")
	assert.True(t, l.AllowPair(ctx, "a", "c", 2*time.Minute), "expected other targets to be independent")

	clock.advance(119 * time.Second)
	assert.False(t, l.AllowPair(ctx, "a", "b", 2*time.Minute), "expected cooldown to still apply")

	clock.advance(time.Second)
	assert.True(t, l.AllowPair(ctx, "a", "b", 2*time.Minute), "expected cooldown to have elapsed")
}

func TestMemoryLimiterSweep(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLimiter()

	l.Allow(ctx, "short", 3, time.Minute)
	l.Allow(ctx, "long", 3, time.Hour)
	l.AllowPair(ctx, "a", "b", time.Minute)

	clock.advance(2 * time.Minute)
	l.sweep()

	assert.NotContains(t, l.windows, "short", "expected expired window to be swept")
	assert.Contains(t, l.windows, "long", "expected live window to survive")
	assert.Empty(t, l.pairs, "expected expired cooldown to be swept")
}

func TestMemoryLimiterRunStop(t *testing.T) {
	l := NewMemoryLimiter()
	l.Run()

	done := make(chan struct{})
	go func() {
		l.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Stop to return")
	}
}
