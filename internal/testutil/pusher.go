package testutil

import "sync"

type Push struct {
	UserId  string
	Event   string
	Payload any
}

// RecordingPusher records every event handed to it and reports each one as
// delivered to a single session.
type RecordingPusher struct {
	mu     sync.Mutex
	pushes []Push
}

func (p *RecordingPusher) PushToUser(userId, event string, payload any) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, Push{UserId: userId, Event: event, Payload: payload})
	return 1
}

func (p *RecordingPusher) PushToUsers(userIds []string, event string, payload any) int {
	n := 0
	for _, id := range userIds {
		n += p.PushToUser(id, event, payload)
	}
	return n
}

func (p *RecordingPusher) Pushes() []Push {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Push(nil), p.pushes...)
}

// To returns the pushes of event delivered to userId.
func (p *RecordingPusher) To(userId, event string) []Push {
	var out []Push
	for _, push := range p.Pushes() {
		if push.UserId == userId && push.Event == event {
			out = append(out, push)
		}
	}
	return out
}

func (p *RecordingPusher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = nil
}
