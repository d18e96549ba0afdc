package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Ravindra2377/KPR/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLimiter(t *testing.T) *RedisLimiter {
	addr := os.Getenv("KPR_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("KPR_TEST_REDIS_ADDR not set")
	}

	l, err := NewRedisLimiter(addr, os.Getenv("KPR_TEST_REDIS_PASSWORD"), 0, testutil.TestLogger(t))
	require.NoError(t, err, "expected redis connection")
	l.prefix = "kpr:test:" + uuid.NewString() + ":"
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRedisLimiterAllow(t *testing.T) {
	l := newRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(ctx, "collab:u1", 3, time.Minute), "expected hit %d to be allowed", i+1)
	}
	assert.False(t, l.Allow(ctx, "collab:u1", 3, time.Minute), "expected fourth hit to be denied")
	assert.True(t, l.Allow(ctx, "collab:u2", 3, time.Minute), "expected other keys to be independent")

	ttl, err := l.client.PTTL(ctx, l.prefix+"collab:u1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0), "expected the window to expire")
}

func TestRedisLimiterAllowPair(t *testing.T) {
	l := newRedisLimiter(t)
	ctx := context.Background()

	assert.True(t, l.AllowPair(ctx, "a", "b", time.Minute))
	assert.False(t, l.AllowPair(ctx, "a", "b", time.Minute), "expected cooldown to deny")
	assert.True(t, l.AllowPair(ctx, "b", "a", time.Minute), "expected the reverse direction to be independent")
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	l := newRedisLimiter(t)
	require.NoError(t, l.Close())

	assert.True(t, l.Allow(context.Background(), "k", 1, time.Minute), "expected closed client to fail open")
	assert.True(t, l.AllowPair(context.Background(), "a", "b", time.Minute), "expected closed client to fail open")
}
