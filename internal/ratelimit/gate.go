package ratelimit

import (
	"context"

	"github.com/Ravindra2377/KPR/internal/apperr"
	"github.com/Ravindra2377/KPR/internal/stats"
	"github.com/sirupsen/logrus"
)

const NumRateLimited = "NumRateLimited"

// Gate applies the configured policies and turns denials into RateLimited
// errors.
type Gate struct {
	limiter  Limiter
	policies Policies
	stats    stats.StatsProvider
	log      *logrus.Logger
}

func NewGate(limiter Limiter, policies Policies, su stats.StatsProvider, log *logrus.Logger) *Gate {
	su.RegisterMetric(NumRateLimited)
	return &Gate{limiter: limiter, policies: policies, stats: su, log: log}
}

// CollabRequest checks the per-actor quota before the per-pair cooldown.
func (g *Gate) CollabRequest(ctx context.Context, actorId, targetId string) error {
	q := g.policies.Collab
	if !g.limiter.Allow(ctx, collabKey(actorId), q.Limit, q.Window) {
		return g.deny(actorId, "collab", "too many collaboration requests, try again later")
	}
	if !g.limiter.AllowPair(ctx, actorId, targetId, g.policies.CollabCooldown) {
		return g.deny(actorId, "collab pair", "you recently reached out to this creator, please wait a moment")
	}
	return nil
}

func (g *Gate) PodApply(ctx context.Context, userId, podId string) error {
	q := g.policies.PodApply
	if !g.limiter.Allow(ctx, applyKey(userId, podId), q.Limit, q.Window) {
		return g.deny(userId, "pod apply", "too many applications to this pod, try again later")
	}
	return nil
}

func (g *Gate) PodInvite(ctx context.Context, ownerId, podId string) error {
	q := g.policies.PodInvite
	if !g.limiter.Allow(ctx, inviteKey(ownerId, podId), q.Limit, q.Window) {
		return g.deny(ownerId, "pod invite", "too many invites from this pod, try again later")
	}
	return nil
}

func (g *Gate) deny(userId, policy, reason string) error {
	g.stats.Incr(NumRateLimited)
	g.log.WithFields(logrus.Fields{"user_id": userId, "policy": policy}).Info("rate limited")
	return apperr.New(apperr.RateLimited, reason)
}
