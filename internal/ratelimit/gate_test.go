package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/Ravindra2377/KPR/internal/apperr"
	"github.com/Ravindra2377/KPR/internal/stats"
	"github.com/Ravindra2377/KPR/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func newTestGate(t *testing.T) (*Gate, *stats.MockStatsUpdater, *fakeClock) {
	su := new(stats.MockStatsUpdater)
	su.On("RegisterMetric", NumRateLimited).Return().Once()
	su.On("Incr", NumRateLimited).Return()

	l, clock := newTestLimiter()
	return NewGate(l, DefaultPolicies(), su, testutil.TestLogger(t)), su, clock
}

func TestGateCollabRequest(t *testing.T) {
	ctx := context.Background()
	g, su, clock := newTestGate(t)

	assert.NoError(t, g.CollabRequest(ctx, "a", "b"))

	err := g.CollabRequest(ctx, "a", "b")
	assert.True(t, apperr.Is(err, apperr.RateLimited), "expected pair cooldown to deny")
	assert.Contains(t, apperr.ReasonOf(err), "recently reached out")

	assert.NoError(t, g.CollabRequest(ctx, "a", "c"))

	// the cooldown denial above still counted against the quota
	err = g.CollabRequest(ctx, "a", "d")
	assert.True(t, apperr.Is(err, apperr.RateLimited), "expected quota to deny the fourth request")
	assert.Contains(t, apperr.ReasonOf(err), "too many collaboration requests")

	clock.advance(10 * time.Minute)
	assert.NoError(t, g.CollabRequest(ctx, "a", "b"), "expected both limits to reset")

	su.AssertNumberOfCalls(t, "Incr", 2)
}

func TestGatePodPolicies(t *testing.T) {
	ctx := context.Background()
	g, su, _ := newTestGate(t)

	for n := 0; n < 3; n++ {
		assert.NoError(t, g.PodApply(ctx, "u1", "pod1"))
	}
	assert.True(t, apperr.Is(g.PodApply(ctx, "u1", "pod1"), apperr.RateLimited), "expected fourth application to be limited")
	assert.NoError(t, g.PodApply(ctx, "u1", "pod2"), "expected quota to be per pod")

	for n := 0; n < 5; n++ {
		assert.NoError(t, g.PodInvite(ctx, "owner", "pod1"))
	}
	assert.True(t, apperr.Is(g.PodInvite(ctx, "owner", "pod1"), apperr.RateLimited), "expected sixth invite to be limited")

	su.AssertCalled(t, "Incr", NumRateLimited)
	su.AssertNumberOfCalls(t, "Incr", 2)
	su.AssertExpectations(t)
}
