package server

import (
	"errors"

	"github.com/Ravindra2377/KPR/internal/stats"
	"github.com/sirupsen/logrus"
)

const (
	NumFanoutDeliveries = "NumFanoutDeliveries"
	NumFanoutDrops      = "NumFanoutDrops"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSendBufferFull  = errors.New("send buffer full")
)

// Transport delivers a message to a single live session.
type Transport interface {
	Send(sessionId string, msg *ServerMessage) error
}

// Dispatcher fans events out to every live session of a user. Delivery is
// best effort: a failing session is logged and skipped.
type Dispatcher struct {
	registry  *SessionRegistry
	transport Transport
	stats     stats.StatsProvider
	log       *logrus.Logger
}

func NewDispatcher(registry *SessionRegistry, transport Transport, su stats.StatsProvider, log *logrus.Logger) *Dispatcher {
	su.RegisterMetric(NumFanoutDeliveries)
	su.RegisterMetric(NumFanoutDrops)

	return &Dispatcher{
		registry:  registry,
		transport: transport,
		stats:     su,
		log:       log,
	}
}

// PushToUser sends event to each of the user's sessions and returns how many
// accepted it. Offline users are skipped silently.
func (d *Dispatcher) PushToUser(userId, event string, payload any) int {
	delivered := 0
	for _, sessionId := range d.registry.SessionsOf(userId) {
		// each session gets its own message; the write pump owns it after Send
		if err := d.transport.Send(sessionId, NewEvent(event, payload)); err != nil {
			d.stats.Incr(NumFanoutDrops)
			d.log.WithFields(logrus.Fields{
				"user_id":    userId,
				"session_id": sessionId,
				"event":      event,
			}).WithError(err).Warn("dropped event")
			continue
		}
		d.stats.Incr(NumFanoutDeliveries)
		delivered++
	}
	return delivered
}

func (d *Dispatcher) PushToUsers(userIds []string, event string, payload any) int {
	delivered := 0
	for _, id := range userIds {
		delivered += d.PushToUser(id, event, payload)
	}
	return delivered
}

func (d *Dispatcher) Broadcast(event string, payload any) int {
	return d.PushToUsers(d.registry.OnlineUsers(), event, payload)
}
