package api

import (
	"net/http"

	"github.com/Ravindra2377/KPR/internal/collab"
	"github.com/go-chi/chi/v5"
)

func (s *App) sendCollabRequest(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req collab.SendParams
	if !s.readJson(w, r, &req) {
		return
	}

	sent, err := s.svc.Collab.Send(r.Context(), userId, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusCreated, sent)
}

func (s *App) incomingCollabRequests(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	list, err := s.svc.Collab.Incoming(r.Context(), userId)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, list)
}

func (s *App) outgoingCollabRequests(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	list, err := s.svc.Collab.Outgoing(r.Context(), userId)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, list)
}

func (s *App) acceptCollabRequest(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req collab.AcceptParams
	if !s.readJson(w, r, &req) {
		return
	}

	out, err := s.svc.Collab.Accept(r.Context(), chi.URLParam(r, "id"), userId, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, out)
}

func (s *App) rejectCollabRequest(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req collab.RejectParams
	if !s.readJson(w, r, &req) {
		return
	}

	updated, err := s.svc.Collab.Reject(r.Context(), chi.URLParam(r, "id"), userId, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, updated)
}

func (s *App) cancelCollabRequest(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	updated, err := s.svc.Collab.Cancel(r.Context(), chi.URLParam(r, "id"), userId)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, updated)
}
