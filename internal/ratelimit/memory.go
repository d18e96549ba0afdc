package ratelimit

import (
	"context"
	"sync"
	"time"
)

const sweepInterval = time.Minute

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps counters in process. Run starts a sweeper that drops
// expired windows and cooldowns.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	pairs   map[string]time.Time
	now     func() time.Time
	stop    chan struct{}
	done    chan struct{}
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*window),
		pairs:   make(map[string]time.Time),
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string, limit int, win time.Duration) bool {
	if limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(win)}
		return true
	}

	if w.count >= limit {
		return false
	}
	w.count++
	return true
}

func (l *MemoryLimiter) AllowPair(ctx context.Context, actorId, targetId string, cooldown time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := pairKey(actorId, targetId)
	now := l.now()
	if until, ok := l.pairs[key]; ok && now.Before(until) {
		return false
	}

	l.pairs[key] = now.Add(cooldown)
	return true
}

func (l *MemoryLimiter) Run() {
	go func() {
		defer close(l.done)

		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				l.sweep()
			case <-l.stop:
				return
			}
		}
	}()
}

func (l *MemoryLimiter) Stop() {
	close(l.stop)
	<-l.done
}

func (l *MemoryLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
	for key, until := range l.pairs {
		if !now.Before(until) {
			delete(l.pairs, key)
		}
	}
}
