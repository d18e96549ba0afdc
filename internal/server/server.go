package server

import (
	"context"
	"sync"
	"time"

	"github.com/Ravindra2377/KPR/internal/stats"
	"github.com/sirupsen/logrus"
)

const (
	NumActiveSessions = "NumActiveSessions"
	NumOnlineUsers    = "NumOnlineUsers"

	defaultInboundTimeout = 5 * time.Second
)

// InboundHandler serves the requests clients send over their socket.
type InboundHandler interface {
	// HandlePublish stores a room message and returns what the sender gets back.
	HandlePublish(ctx context.Context, userId, roomId, content string) (any, error)
	HandleTyping(ctx context.Context, userId, roomId string, isTyping bool) error
	HandleRead(ctx context.Context, userId, roomId string) error
}

type stopReq struct {
	done chan struct{}
}

// Hub owns the live websocket sessions. Connects and disconnects are
// serialized through Run so presence changes are observed in order.
type Hub struct {
	log            *logrus.Logger
	stats          stats.StatsProvider
	registry       *SessionRegistry
	dispatcher     *Dispatcher
	clients        map[string]*Client
	clientsLock    sync.RWMutex
	registerChan   chan *Client
	deRegisterChan chan *Client
	stop           chan stopReq
	done           chan struct{}
	handler        InboundHandler
	inboundTimeout time.Duration
}

func NewHub(logger *logrus.Logger, su stats.StatsProvider) *Hub {
	su.RegisterMetric(NumActiveSessions)
	su.RegisterMetric(NumOnlineUsers)

	h := &Hub{
		log:            logger,
		stats:          su,
		registry:       NewSessionRegistry(),
		clients:        make(map[string]*Client),
		registerChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		stop:           make(chan stopReq),
		done:           make(chan struct{}),
		inboundTimeout: defaultInboundTimeout,
	}
	h.dispatcher = NewDispatcher(h.registry, h, su, logger)

	return h
}

func (h *Hub) Registry() *SessionRegistry {
	return h.registry
}

func (h *Hub) Dispatcher() *Dispatcher {
	return h.dispatcher
}

// SetHandler installs the handler for inbound client requests. It must be
// called before Run.
func (h *Hub) SetHandler(handler InboundHandler) {
	h.handler = handler
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.registerChan:
			h.addClient(c)
		case c := <-h.deRegisterChan:
			h.removeClient(c)
		case req := <-h.stop:
			h.log.Info("closing client sessions")

			h.clientsLock.RLock()
			for _, c := range h.clients {
				c.stopClient()
			}
			h.clientsLock.RUnlock()

			close(h.done)
			close(req.done)
			return
		}
	}
}

// Register hands a connected client to the hub.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.registerChan <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) deregister(c *Client) {
	select {
	case h.deRegisterChan <- c:
	case <-h.done:
	}
}

func (h *Hub) addClient(c *Client) {
	h.clientsLock.Lock()
	h.clients[c.sessionId] = c
	h.clientsLock.Unlock()

	h.stats.Incr(NumActiveSessions)
	log := h.log.WithFields(logrus.Fields{"user_id": c.userId, "session_id": c.sessionId})
	log.Info("session connected")

	if h.registry.Register(c.userId, c.sessionId) {
		h.stats.Incr(NumOnlineUsers)
		log.Debug("user came online")
		h.dispatcher.Broadcast(EventPresence, Presence{UserId: c.userId, Online: true})
	}
}

func (h *Hub) removeClient(c *Client) {
	h.clientsLock.Lock()
	_, ok := h.clients[c.sessionId]
	delete(h.clients, c.sessionId)
	h.clientsLock.Unlock()

	if !ok {
		return
	}

	h.stats.Decr(NumActiveSessions)
	log := h.log.WithFields(logrus.Fields{"user_id": c.userId, "session_id": c.sessionId})
	log.Info("session disconnected")

	if h.registry.Unregister(c.userId, c.sessionId) {
		h.stats.Decr(NumOnlineUsers)
		log.Debug("user went offline")
		h.dispatcher.Broadcast(EventPresence, Presence{UserId: c.userId, Online: false})
	}
}

// Send queues msg on a session's outbound buffer without blocking.
func (h *Hub) Send(sessionId string, msg *ServerMessage) error {
	h.clientsLock.RLock()
	c, ok := h.clients[sessionId]
	h.clientsLock.RUnlock()

	if !ok {
		return ErrSessionNotFound
	}
	if !c.queueMessage(msg) {
		return ErrSendBufferFull
	}
	return nil
}

func (h *Hub) Shutdown(ctx context.Context) error {
	h.log.Info("received shutdown signal")

	req := stopReq{done: make(chan struct{})}
	select {
	case h.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
