package server

import (
	"sort"
	"sync"
)

// SessionRegistry tracks which sessions each user has open. It is in-memory
// only and safe for concurrent use.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]map[string]struct{}
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]map[string]struct{}),
	}
}

// Register records a session and reports whether the user just came online.
// Registering a known session again is a no-op.
func (r *SessionRegistry) Register(userId, sessionId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[userId]
	if !ok {
		set = make(map[string]struct{})
		r.sessions[userId] = set
	}
	set[sessionId] = struct{}{}

	return !ok
}

// Unregister removes a session and reports whether it was the user's last.
func (r *SessionRegistry) Unregister(userId, sessionId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[userId]
	if !ok {
		return false
	}
	if _, ok := set[sessionId]; !ok {
		return false
	}

	delete(set, sessionId)
	if len(set) == 0 {
		delete(r.sessions, userId)
		return true
	}
	return false
}

func (r *SessionRegistry) SessionsOf(userId string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions[userId]))
	for id := range r.sessions[userId] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *SessionRegistry) IsOnline(userId string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.sessions[userId]
	return ok
}

func (r *SessionRegistry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}
