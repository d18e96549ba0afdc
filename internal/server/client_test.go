package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ravindra2377/KPR/internal/apperr"
	"github.com/Ravindra2377/KPR/internal/testutil"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockInboundHandler struct {
	mock.Mock
}

func (m *mockInboundHandler) HandlePublish(ctx context.Context, userId, roomId, content string) (any, error) {
	args := m.Called(ctx, userId, roomId, content)
	return args.Get(0), args.Error(1)
}

func (m *mockInboundHandler) HandleTyping(ctx context.Context, userId, roomId string, isTyping bool) error {
	args := m.Called(ctx, userId, roomId, isTyping)
	return args.Error(0)
}

func (m *mockInboundHandler) HandleRead(ctx context.Context, userId, roomId string) error {
	args := m.Called(ctx, userId, roomId)
	return args.Error(0)
}

func Test_queueMessage(t *testing.T) {
	t.Run("successful queue", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t).WithField("test", t.Name()),
		}

		res := c.queueMessage(&ServerMessage{})
		assert.True(t, res, "expected queueMessage to return true when channel is not full")

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg, "expected a message to be sent to the client")
		default:
			t.Error("expected a message to be sent to the client, but none was sent")
		}
	})
	t.Run("channel full", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t).WithField("test", t.Name()),
		}

		c.send <- &ServerMessage{}
		res := c.queueMessage(&ServerMessage{})
		assert.False(t, res, "expected queueMessage to return false when channel is full")
	})
}

func Test_stopClient(t *testing.T) {
	c := &Client{
		stop: make(chan struct{}),
	}

	c.stopClient()
	assert.NotPanics(t, c.stopClient, "expected stopClient to be idempotent")

	select {
	case <-c.stop:
	default:
		t.Error("expected stop channel to be closed")
	}
}

func Test_handleMessage(t *testing.T) {
	tcs := []struct {
		name      string
		msg       *ClientMessage
		setup     func(h *mockInboundHandler)
		noHandler bool
		code      int
		errMsg    string
		data      any
	}{
		{
			name: "publish",
			msg:  &ClientMessage{BaseMessage: BaseMessage{Id: 7}, Publish: &Publish{RoomId: "r1", Content: "hello"}},
			setup: func(h *mockInboundHandler) {
				h.On("HandlePublish", mock.Anything, "alice", "r1", "hello").Return("stored", nil).Once()
			},
			code: http.StatusOK,
			data: "stored",
		},
		{
			name: "publish to a foreign room",
			msg:  &ClientMessage{BaseMessage: BaseMessage{Id: 8}, Publish: &Publish{RoomId: "r2", Content: "hello"}},
			setup: func(h *mockInboundHandler) {
				h.On("HandlePublish", mock.Anything, "alice", "r2", "hello").
					Return(nil, apperr.New(apperr.Forbidden, "not a member of this room")).Once()
			},
			code:   http.StatusForbidden,
			errMsg: "not a member of this room",
		},
		{
			name: "typing",
			msg:  &ClientMessage{BaseMessage: BaseMessage{Id: 1}, Typing: &Typing{RoomId: "r1", IsTyping: true}},
			setup: func(h *mockInboundHandler) {
				h.On("HandleTyping", mock.Anything, "alice", "r1", true).Return(nil).Once()
			},
			code: http.StatusAccepted,
		},
		{
			name: "read",
			msg:  &ClientMessage{BaseMessage: BaseMessage{Id: 2}, Read: &ReadReceipt{RoomId: "r1"}},
			setup: func(h *mockInboundHandler) {
				h.On("HandleRead", mock.Anything, "alice", "r1").Return(nil).Once()
			},
			code: http.StatusAccepted,
		},
		{
			name: "handler denies",
			msg:  &ClientMessage{BaseMessage: BaseMessage{Id: 3}, Read: &ReadReceipt{RoomId: "r2"}},
			setup: func(h *mockInboundHandler) {
				h.On("HandleRead", mock.Anything, "alice", "r2").
					Return(apperr.New(apperr.Forbidden, "not a member of this room")).Once()
			},
			code:   http.StatusForbidden,
			errMsg: "not a member of this room",
		},
		{
			name:   "empty message",
			msg:    &ClientMessage{BaseMessage: BaseMessage{Id: 4}},
			code:   http.StatusBadRequest,
			errMsg: "invalid message format",
		},
		{
			name:      "no handler installed",
			msg:       &ClientMessage{BaseMessage: BaseMessage{Id: 5}, Read: &ReadReceipt{RoomId: "r1"}},
			noHandler: true,
			code:      http.StatusServiceUnavailable,
			errMsg:    "service unavailable",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newTestHub(t)
			handler := &mockInboundHandler{}
			defer handler.AssertExpectations(t)
			if tc.setup != nil {
				tc.setup(handler)
			}
			if !tc.noHandler {
				h.SetHandler(handler)
			}

			c := newTestClient(t, h, "alice", "a1")
			tc.msg.UserId = c.userId
			tc.msg.client = c

			res := c.handleMessage(tc.msg)
			assert.Equal(t, tc.msg.Id, res.Id, "expected response id to match request id")
			assert.Equal(t, tc.code, res.Response.ResponseCode, "expected response code")
			assert.Equal(t, tc.errMsg, res.Response.Error, "expected response error")
			assert.Equal(t, tc.data, res.Response.Data, "expected response data")
		})
	}
}

func TestClient_Integration(t *testing.T) {
	h, _ := newTestHub(t)
	handler := &mockInboundHandler{}
	handler.On("HandleTyping", mock.Anything, "alice", "room-1", true).Return(nil)
	h.SetHandler(handler)
	go h.Run()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}

		c := NewClient("alice", conn, h, testutil.TestLogger(t))
		if !h.Register(c) {
			conn.Close()
			return
		}
		go c.Write()
		go c.Read()
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err, "expected websocket dial to succeed")
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"id":1,"typing":{"room_id":"room-1","is_typing":true}}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))

	var (
		sawPresence bool
		sawAccepted bool
		sawInvalid  bool
	)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for !(sawPresence && sawAccepted && sawInvalid) {
		var msg ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("expected server messages, got %v", err)
		}

		switch {
		case msg.Event != nil && msg.Event.Name == EventPresence:
			sawPresence = true
		case msg.Response != nil && msg.Id == 1:
			assert.Equal(t, http.StatusAccepted, msg.Response.ResponseCode)
			sawAccepted = true
		case msg.Response != nil && msg.Response.ResponseCode == http.StatusBadRequest:
			sawInvalid = true
		}
	}

	assert.Eventually(t, func() bool { return h.Registry().IsOnline("alice") }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return !h.Registry().IsOnline("alice") }, 2*time.Second, 10*time.Millisecond,
		"expected closing the socket to end the session")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, h.Shutdown(ctx))
	handler.AssertExpectations(t)
}
