package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
)

type Client struct {
	conn      *websocket.Conn
	hub       *Hub
	log       *logrus.Entry
	sessionId string
	userId    string
	send      chan *ServerMessage
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewClient(userId string, conn *websocket.Conn, hub *Hub, l *logrus.Logger) *Client {
	sessionId := uuid.NewString()
	return &Client{
		conn:      conn,
		hub:       hub,
		log:       l.WithFields(logrus.Fields{"user_id": userId, "session_id": sessionId}),
		sessionId: sessionId,
		userId:    userId,
		send:      make(chan *ServerMessage, 256),
		stop:      make(chan struct{}),
	}
}

func (c *Client) SessionId() string {
	return c.sessionId
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Debug("write exiting")
	}()

	for {
		select {
		case msg := <-c.send:
			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.WithError(err).Error("failed to serialize message")
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Debug("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.WithError(err).Warn("ws: read")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.WithError(err).Debug("error parsing message")
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.client = c
		msg.UserId = c.userId
		msg.Timestamp = Now()

		c.queueMessage(c.handleMessage(&msg))
	}
}

// handleMessage runs an inbound request against the hub's handler and builds
// the reply.
func (c *Client) handleMessage(msg *ClientMessage) *ServerMessage {
	if msg.Publish == nil && msg.Typing == nil && msg.Read == nil {
		return ErrInvalidMessage(msg.Id)
	}

	handler := c.hub.handler
	if handler == nil {
		return ErrServiceUnavailable(msg.Id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.hub.inboundTimeout)
	defer cancel()

	var err error
	switch {
	case msg.Publish != nil:
		var stored any
		if stored, err = handler.HandlePublish(ctx, msg.UserId, msg.Publish.RoomId, msg.Publish.Content); err == nil {
			return NoErrOK(msg.Id, stored)
		}
	case msg.Typing != nil:
		err = handler.HandleTyping(ctx, msg.UserId, msg.Typing.RoomId, msg.Typing.IsTyping)
	case msg.Read != nil:
		err = handler.HandleRead(ctx, msg.UserId, msg.Read.RoomId)
	}

	if err != nil {
		c.log.WithError(err).Debug("inbound request failed")
		return ErrFromApp(msg.Id, err)
	}
	return NoErrAccepted(msg.Id)
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Warn("failed to send message to client, channel is full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.WithError(err).Warn("write message")
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) cleanup() {
	c.hub.deregister(c)
	c.stopClient()
}
