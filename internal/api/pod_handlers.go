package api

import (
	"net/http"
	"time"

	"github.com/Ravindra2377/KPR/internal/apperr"
	"github.com/Ravindra2377/KPR/internal/pods"
	"github.com/go-chi/chi/v5"
)

type ApplyRequest struct {
	RoleId  string `json:"role_id"`
	Message string `json:"message"`
}

type WithdrawRequest struct {
	RoleId string `json:"role_id"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type InviteRequest struct {
	UserId string `json:"user_id"`
	RoleId string `json:"role_id"`
}

type UpdateRolesRequest struct {
	Roles []pods.RoleParams `json:"roles"`
}

type BoostRequest struct {
	Hours int `json:"hours"`
}

func (s *App) createPod(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req pods.CreateParams
	if !s.readJson(w, r, &req) {
		return
	}

	pod, err := s.svc.Pods.Create(r.Context(), userId, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusCreated, pod)
}

func (s *App) ownedPods(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	list, err := s.svc.Pods.ListOwned(r.Context(), userId)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, list)
}

func (s *App) memberPods(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	list, err := s.svc.Pods.ListForMember(r.Context(), userId)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, list)
}

func (s *App) getPod(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	pod, err := s.svc.Pods.Get(r.Context(), chi.URLParam(r, "id"), userId)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, pod)
}

func (s *App) applyToPod(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req ApplyRequest
	if !s.readJson(w, r, &req) {
		return
	}

	applicant, err := s.svc.Pods.Apply(r.Context(), chi.URLParam(r, "id"), userId, req.RoleId, req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusCreated, applicant)
}

func (s *App) withdrawApplication(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req WithdrawRequest
	if !s.readJson(w, r, &req) {
		return
	}

	if err := s.svc.Pods.Withdraw(r.Context(), chi.URLParam(r, "id"), userId, req.RoleId); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *App) approveApplicant(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	approval, err := s.svc.Pods.Approve(r.Context(), chi.URLParam(r, "id"), userId, chi.URLParam(r, "applicantId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, approval)
}

func (s *App) rejectApplicant(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req RejectRequest
	if !s.readJson(w, r, &req) {
		return
	}

	err := s.svc.Pods.Reject(r.Context(), chi.URLParam(r, "id"), userId, chi.URLParam(r, "applicantId"), req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *App) inviteToPod(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req InviteRequest
	if !s.readJson(w, r, &req) {
		return
	}

	inv, err := s.svc.Pods.Invite(r.Context(), chi.URLParam(r, "id"), userId, req.UserId, req.RoleId)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusCreated, inv)
}

func (s *App) acceptInvite(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	approval, err := s.svc.Pods.AcceptInvite(r.Context(), chi.URLParam(r, "id"), userId, chi.URLParam(r, "inviteId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, approval)
}

func (s *App) declineInvite(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	if err := s.svc.Pods.DeclineInvite(r.Context(), chi.URLParam(r, "id"), userId, chi.URLParam(r, "inviteId")); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *App) removeMember(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	if err := s.svc.Pods.RemoveMember(r.Context(), chi.URLParam(r, "id"), userId, chi.URLParam(r, "userId")); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *App) updateRoles(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req UpdateRolesRequest
	if !s.readJson(w, r, &req) {
		return
	}

	pod, err := s.svc.Pods.UpdateRoles(r.Context(), chi.URLParam(r, "id"), userId, req.Roles)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, pod)
}

func (s *App) boostPod(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req BoostRequest
	if !s.readJson(w, r, &req) {
		return
	}
	if req.Hours <= 0 {
		s.writeError(w, r, apperr.New(apperr.Invalid, "hours must be positive"))
		return
	}

	pod, err := s.svc.Pods.Boost(r.Context(), chi.URLParam(r, "id"), userId, time.Duration(req.Hours)*time.Hour)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, pod)
}
