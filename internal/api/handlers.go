package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/Ravindra2377/KPR/internal/apperr"
	"github.com/Ravindra2377/KPR/internal/server"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

type OpenDirectRoomRequest struct {
	UserId string `json:"user_id"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

type PresenceResponse struct {
	UserId   string `json:"user_id"`
	Online   bool   `json:"online"`
	Sessions int    `json:"sessions"`
}

type CountResponse struct {
	Count int `json:"count"`
}

func (s *App) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("json encode")
	}
}

// writeError reports err to the caller. Unclassified failures are logged and
// sent to Sentry; everything else is an expected denial.
func (s *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	errResp := NewErrorFromApp(err)

	entry := s.log.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": errResp.StatusCode,
	})
	if userId, ok := UserId(r.Context()); ok {
		entry = entry.WithField("user_id", userId)
	}

	if errResp.StatusCode >= http.StatusInternalServerError {
		entry.WithError(err).Error("request failed")
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("error_type", "request")
			scope.SetRequest(r)
			sentry.CaptureException(err)
		})
	} else {
		entry.WithError(err).Debug("request denied")
	}

	s.writeJson(w, errResp.StatusCode, errResp)
}

// readJson decodes the request body into v. An empty body leaves v untouched.
func (s *App) readJson(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	errResp := NewBadRequestError("invalid request body")
	s.writeJson(w, errResp.StatusCode, errResp)
	return false
}

func (s *App) currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
	}
	return userId, ok
}

func (s *App) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.Failed, "ping store", err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *App) presence(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, "userId")
	sessions := s.hub.Registry().SessionsOf(userId)

	s.writeJson(w, http.StatusOK, PresenceResponse{
		UserId:   userId,
		Online:   len(sessions) > 0,
		Sessions: len(sessions),
	})
}

func (s *App) listNotifications(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	limit, ok := s.queryLimit(w, r)
	if !ok {
		return
	}

	list, err := s.svc.Notifications.ListForUser(r.Context(), userId, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, list)
}

func (s *App) unreadNotifications(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	n, err := s.svc.Notifications.UnreadCount(r.Context(), userId)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, CountResponse{Count: n})
}

func (s *App) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	if err := s.svc.Notifications.MarkRead(r.Context(), chi.URLParam(r, "id"), userId); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *App) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	n, err := s.svc.Notifications.MarkAllRead(r.Context(), userId)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, CountResponse{Count: n})
}

func (s *App) openDirectRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req OpenDirectRoomRequest
	if !s.readJson(w, r, &req) {
		return
	}

	room, err := s.svc.Rooms.GetOrCreateDirectRoom(r.Context(), userId, req.UserId)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, room)
}

func (s *App) markRoomRead(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	n, err := s.svc.Rooms.MarkRead(r.Context(), chi.URLParam(r, "id"), userId)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, CountResponse{Count: n})
}

func (s *App) roomMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	limit, ok := s.queryLimit(w, r)
	if !ok {
		return
	}

	var before time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			errResp := NewBadRequestError("before must be an RFC 3339 timestamp")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		before = t
	}

	list, err := s.svc.Rooms.ListMessages(r.Context(), chi.URLParam(r, "id"), userId, before, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, list)
}

func (s *App) sendRoomMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if !s.readJson(w, r, &req) {
		return
	}

	msg, err := s.svc.Rooms.SendMessage(r.Context(), chi.URLParam(r, "id"), userId, req.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

// queryLimit reads the optional limit parameter. Zero means the store default.
func (s *App) queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		errResp := NewBadRequestError("limit must be a non-negative integer")
		s.writeJson(w, errResp.StatusCode, errResp)
		return 0, false
	}
	return n, true
}

func (s *App) serveWs(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("error upgrading connection")
		return
	}

	client := server.NewClient(userId, conn, s.hub, s.log)
	if !s.hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.Write()
	go client.Read()
}
