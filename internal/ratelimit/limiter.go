package ratelimit

import (
	"context"
	"time"
)

// Limiter answers whether an action keyed by key may happen now. Checks are
// advisory: a hit counts as soon as it is allowed, even if the caller's
// action later fails.
type Limiter interface {
	// Allow admits at most limit hits per fixed window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) bool
	// AllowPair admits one actor→target action per cooldown.
	AllowPair(ctx context.Context, actorId, targetId string, cooldown time.Duration) bool
}

type Quota struct {
	Limit  int
	Window time.Duration
}

type Policies struct {
	Collab         Quota
	CollabCooldown time.Duration
	PodApply       Quota
	PodInvite      Quota
}

func DefaultPolicies() Policies {
	return Policies{
		Collab:         Quota{Limit: 3, Window: 10 * time.Minute},
		CollabCooldown: 2 * time.Minute,
		PodApply:       Quota{Limit: 3, Window: 10 * time.Minute},
		PodInvite:      Quota{Limit: 5, Window: 10 * time.Minute},
	}
}

func collabKey(actorId string) string {
	return "collab:" + actorId
}

func applyKey(userId, podId string) string {
	return "apply:" + userId + ":" + podId
}

func inviteKey(ownerId, podId string) string {
	return "invite:" + ownerId + ":" + podId
}

func pairKey(actorId, targetId string) string {
	return "pair:" + actorId + ":" + targetId
}
