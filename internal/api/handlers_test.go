package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ravindra2377/KPR/internal/collab"
	"github.com/Ravindra2377/KPR/internal/database"
	"github.com/Ravindra2377/KPR/internal/pods"
	"github.com/Ravindra2377/KPR/internal/server"
	"github.com/Ravindra2377/KPR/internal/testutil"
	"github.com/Ravindra2377/KPR/internal/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func Test_healthCheck(t *testing.T) {
	tcases := []struct {
		name    string
		mockErr error
	}{
		{
			name:    "successful health check",
			mockErr: nil,
		},
		{
			name:    "failed health check",
			mockErr: errors.New("db error"),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockRepository{}
			defer mockRepo.AssertExpectations(t)
			mockRepo.On("Ping", mock.Anything).Return(tc.mockErr).Once()

			app := &App{log: testutil.TestLogger(t), repo: mockRepo}
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			app.healthCheck(rr, req)

			if tc.mockErr != nil {
				assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code to be 500")
				assert.NotContains(t, rr.Body.String(), "db error", "expected the cause to stay internal")
			} else {
				assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
				assert.Equal(t, "OK", rr.Body.String(), "expected response body to be 'OK'")
			}
		})
	}
}

func TestUnauthenticatedRequests(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/api/notifications", "/api/pods/owned", "/api/collab/incoming", "/ws"} {
		rr := app.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected %s to require a token", path)
	}
}

func TestPodLifecycle(t *testing.T) {
	app := newTestApp(t)

	rr := app.do(t, http.MethodPost, "/api/pods", "O", pods.CreateParams{
		Name:  "Short film",
		Roles: []pods.RoleParams{{Title: "Designer", SlotCount: 1}},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	pod := decode[types.Pod](t, rr)
	roleId := pod.Roles[0].Id

	rr = app.do(t, http.MethodPost, "/api/pods/"+pod.Id+"/apply", "X", ApplyRequest{RoleId: roleId, Message: "hi"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	applicant := decode[types.Applicant](t, rr)

	rr = app.do(t, http.MethodPost, "/api/pods/"+pod.Id+"/applicants/"+applicant.Id+"/approve", "X", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code, "expected only the owner to approve")

	rr = app.do(t, http.MethodPost, "/api/pods/"+pod.Id+"/applicants/"+applicant.Id+"/approve", "O", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	approval := decode[pods.Approval](t, rr)
	assert.True(t, approval.Pod.IsMember("X"))
	require.NotNil(t, approval.Room)
	assert.ElementsMatch(t, []string{"O", "X"}, approval.Room.Members)

	rr = app.do(t, http.MethodPost, "/api/pods/"+pod.Id+"/apply", "Y", ApplyRequest{RoleId: roleId})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "role is full", decode[ApiError](t, rr).Message)

	rr = app.do(t, http.MethodGet, "/api/pods/mine", "X", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]types.Pod](t, rr), 1)

	rr = app.do(t, http.MethodPut, "/api/pods/"+pod.Id+"/roles", "O", UpdateRolesRequest{
		Roles: []pods.RoleParams{{Title: "Editor", SlotCount: 2}},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Len(t, decode[types.Pod](t, rr).Roles, 2)

	rr = app.do(t, http.MethodPost, "/api/pods/"+pod.Id+"/boost", "O", BoostRequest{Hours: 24})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, decode[types.Pod](t, rr).Boost.Active)

	rr = app.do(t, http.MethodPost, "/api/pods/"+pod.Id+"/boost", "O", BoostRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = app.do(t, http.MethodPost, "/api/pods/"+pod.Id+"/members/X/remove", "O", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = app.do(t, http.MethodGet, "/api/pods/owned", "O", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	owned := decode[[]types.Pod](t, rr)
	require.Len(t, owned, 1)
	assert.False(t, owned[0].IsMember("X"))
}

func TestRejectAndNotifications(t *testing.T) {
	app := newTestApp(t)

	rr := app.do(t, http.MethodPost, "/api/pods", "O", pods.CreateParams{Name: "Zine"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	pod := decode[types.Pod](t, rr)

	rr = app.do(t, http.MethodPost, "/api/pods/"+pod.Id+"/apply", "Z", ApplyRequest{})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	applicant := decode[types.Applicant](t, rr)

	rr = app.do(t, http.MethodPost, "/api/pods/"+pod.Id+"/applicants/"+applicant.Id+"/reject", "O", RejectRequest{Reason: "Not a fit"})
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	rr = app.do(t, http.MethodGet, "/api/notifications/unread", "Z", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decode[CountResponse](t, rr).Count)

	rr = app.do(t, http.MethodGet, "/api/notifications?limit=10", "Z", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[[]types.Notification](t, rr)
	require.Len(t, list, 1)
	assert.Equal(t, types.NotificationPodApplicationRejected, list[0].Type)
	assert.Contains(t, list[0].Message, "Not a fit")
	assert.Equal(t, "Not a fit", list[0].Meta.(types.PodMeta).Reason, "expected typed meta to survive the round trip")

	rr = app.do(t, http.MethodGet, "/api/notifications?limit=abc", "Z", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = app.do(t, http.MethodPatch, "/api/notifications/"+list[0].Id+"/read", "O", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code, "expected another user's notification to be hidden")

	rr = app.do(t, http.MethodPatch, "/api/notifications/"+list[0].Id+"/read", "Z", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = app.do(t, http.MethodPatch, "/api/notifications/read", "O", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decode[CountResponse](t, rr).Count, "expected the owner's pod_applicant notification to be marked")
}

func TestInviteEndpoints(t *testing.T) {
	app := newTestApp(t)

	rr := app.do(t, http.MethodPost, "/api/pods", "O", pods.CreateParams{Name: "Band", Visibility: types.VisibilityPrivate})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	pod := decode[types.Pod](t, rr)

	rr = app.do(t, http.MethodGet, "/api/pods/"+pod.Id, "X", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = app.do(t, http.MethodPost, "/api/pods/"+pod.Id+"/invite", "O", InviteRequest{UserId: "X"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	inv := decode[types.Invite](t, rr)

	rr = app.do(t, http.MethodPost, "/api/pods/"+pod.Id+"/invite", "O", InviteRequest{UserId: "Y"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	declined := decode[types.Invite](t, rr)

	rr = app.do(t, http.MethodPost, "/api/pods/"+pod.Id+"/invites/"+inv.Id+"/accept", "X", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = app.do(t, http.MethodPost, "/api/pods/"+pod.Id+"/invites/"+declined.Id+"/decline", "Y", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = app.do(t, http.MethodGet, "/api/pods/"+pod.Id, "X", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	joined := decode[types.Pod](t, rr)
	assert.True(t, joined.IsMember("X"))
}

func TestCollabEndpoints(t *testing.T) {
	app := newTestApp(t)

	rr := app.do(t, http.MethodPost, "/api/collab", "alice", collab.SendParams{To: "bob", Message: "jam?"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	req := decode[types.CollabRequest](t, rr)

	rr = app.do(t, http.MethodPost, "/api/collab", "alice", collab.SendParams{To: "bob"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = app.do(t, http.MethodPost, "/api/collab", "alice", collab.SendParams{To: "alice"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = app.do(t, http.MethodGet, "/api/collab/incoming", "bob", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]types.CollabRequest](t, rr), 1)

	rr = app.do(t, http.MethodGet, "/api/collab/outgoing", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]types.CollabRequest](t, rr), 1)

	rr = app.do(t, http.MethodPost, "/api/collab/"+req.Id+"/cancel", "bob", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = app.do(t, http.MethodPost, "/api/collab/"+req.Id+"/accept", "bob", collab.AcceptParams{CreatePod: true})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	out := decode[collab.Acceptance](t, rr)
	assert.Equal(t, types.CollabAccepted, out.Request.Status)
	assert.NotEmpty(t, out.Room.Id)
	require.NotNil(t, out.Pod)

	rr = app.do(t, http.MethodPost, "/api/collab/"+req.Id+"/reject", "bob", collab.RejectParams{})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = app.do(t, http.MethodPost, "/api/collab/missing/accept", "bob", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDirectRoomEndpoints(t *testing.T) {
	app := newTestApp(t)

	rr := app.do(t, http.MethodPost, "/api/rooms/direct", "alice", OpenDirectRoomRequest{UserId: "bob"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	room := decode[types.Room](t, rr)

	rr = app.do(t, http.MethodPost, "/api/rooms/direct", "bob", map[string]string{"user_id": "alice"})
	require.Equal(t, http.StatusOK, rr.Code, "expected the documented user_id body to be accepted")
	assert.Equal(t, room.Id, decode[types.Room](t, rr).Id, "expected the same room from either side")

	rr = app.do(t, http.MethodPost, "/api/rooms/"+room.Id+"/read", "mallory", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = app.do(t, http.MethodPost, "/api/rooms/"+room.Id+"/messages", "bob", SendMessageRequest{Content: "hi alice"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	sent := decode[types.Message](t, rr)
	assert.Equal(t, "bob", sent.AuthorId)

	rr = app.do(t, http.MethodPost, "/api/rooms/"+room.Id+"/messages", "bob", SendMessageRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "expected empty content to be refused")

	rr = app.do(t, http.MethodPost, "/api/rooms/"+room.Id+"/messages", "mallory", SendMessageRequest{Content: "hi"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = app.do(t, http.MethodPost, "/api/rooms/"+room.Id+"/read", "alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decode[CountResponse](t, rr).Count)

	rr = app.do(t, http.MethodGet, "/api/rooms/"+room.Id+"/messages?limit=50", "bob", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	history := decode[[]types.Message](t, rr)
	require.Len(t, history, 1)
	assert.Equal(t, sent.Id, history[0].Id)
	assert.ElementsMatch(t, []string{"alice", "bob"}, history[0].ReadBy, "expected the read to be stored")

	rr = app.do(t, http.MethodGet, "/api/rooms/"+room.Id+"/messages?before="+sent.CreatedAt.Format(time.RFC3339Nano), "bob", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]types.Message](t, rr))

	rr = app.do(t, http.MethodGet, "/api/rooms/"+room.Id+"/messages?before=yesterday", "bob", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = app.do(t, http.MethodGet, "/api/rooms/"+room.Id+"/messages", "mallory", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/rooms/direct", strings.NewReader("{not json"))
	req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: tokenFor(t, "alice")})
	bad := httptest.NewRecorder()
	app.Handler().ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

type wsEvent struct {
	Event *struct {
		Name    string          `json:"name"`
		Payload json.RawMessage `json:"payload"`
	} `json:"event"`
}

func dialWs(t *testing.T, srv *httptest.Server, userId string) *websocket.Conn {
	header := http.Header{}
	header.Set("Origin", "http://localhost:3000")
	header.Set("Authorization", "Bearer "+tokenFor(t, userId))

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	require.NoError(t, err, "expected websocket dial to succeed")
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitForEvent reads from conn until an event called name arrives.
func waitForEvent(t *testing.T, conn *websocket.Conn, name string) json.RawMessage {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg wsEvent
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("expected %s event, got %v", name, err)
		}
		if msg.Event != nil && msg.Event.Name == name {
			return msg.Event.Payload
		}
	}
}

func TestWebsocketDelivery(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	owner := dialWs(t, srv, "O")
	assert.Eventually(t, func() bool { return app.hub.Registry().IsOnline("O") }, time.Second, 10*time.Millisecond)

	rr := app.do(t, http.MethodGet, "/api/presence/O", "X", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, PresenceResponse{UserId: "O", Online: true, Sessions: 1}, decode[PresenceResponse](t, rr))

	rr = app.do(t, http.MethodPost, "/api/pods", "O", pods.CreateParams{Name: "Podcast"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	pod := decode[types.Pod](t, rr)

	rr = app.do(t, http.MethodPost, "/api/pods/"+pod.Id+"/apply", "X", ApplyRequest{Message: "let me in"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var n types.Notification
	require.NoError(t, json.Unmarshal(waitForEvent(t, owner, server.EventNotification), &n))
	assert.Equal(t, types.NotificationPodApplicant, n.Type)
	assert.Equal(t, pod.Id, n.Meta.(types.PodMeta).PodId)

	var applied pods.PodApplicantEvent
	require.NoError(t, json.Unmarshal(waitForEvent(t, owner, server.EventPodApplicant), &applied))
	assert.Equal(t, "X", applied.Applicant.UserId)

	owner.Close()
	assert.Eventually(t, func() bool { return !app.hub.Registry().IsOnline("O") }, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocketPublish(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	rr := app.do(t, http.MethodPost, "/api/rooms/direct", "alice", OpenDirectRoomRequest{UserId: "bob"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	room := decode[types.Room](t, rr)

	alice := dialWs(t, srv, "alice")
	bob := dialWs(t, srv, "bob")
	assert.Eventually(t, func() bool {
		return app.hub.Registry().IsOnline("alice") && app.hub.Registry().IsOnline("bob")
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteJSON(map[string]any{
		"id":      1,
		"publish": map[string]string{"room_id": room.Id, "content": "over the socket"},
	}))

	var got types.Message
	require.NoError(t, json.Unmarshal(waitForEvent(t, bob, server.EventRoomMessage), &got))
	assert.Equal(t, "over the socket", got.Content)
	assert.Equal(t, "alice", got.AuthorId)

	var update struct {
		RoomId      string         `json:"room_id"`
		LastMessage *types.Message `json:"last_message"`
	}
	require.NoError(t, json.Unmarshal(waitForEvent(t, bob, server.EventDMListUpdated), &update))
	require.NotNil(t, update.LastMessage)
	assert.Equal(t, got.Id, update.LastMessage.Id)

	rr = app.do(t, http.MethodGet, "/api/rooms/"+room.Id+"/messages", "bob", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]types.Message](t, rr), 1, "expected the socket message to be stored")
}

func TestWebsocketRejectsForeignOrigin(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	header.Set("Authorization", "Bearer "+tokenFor(t, "O"))

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	assert.Error(t, err, "expected the upgrade to be refused")
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
	assert.False(t, app.hub.Registry().IsOnline("O"))
}
