package collab

import (
	"context"
	"errors"
	"time"

	"github.com/Ravindra2377/KPR/internal/apperr"
	"github.com/Ravindra2377/KPR/internal/database"
	"github.com/Ravindra2377/KPR/internal/input"
	"github.com/Ravindra2377/KPR/internal/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Notifier interface {
	Push(ctx context.Context, userId, typ, message string, meta types.NotificationMeta) (types.Notification, error)
}

type DirectRooms interface {
	GetOrCreateDirectRoom(ctx context.Context, a, b string) (types.Room, error)
}

type Limits interface {
	CollabRequest(ctx context.Context, actorId, targetId string) error
}

type PodCreator interface {
	CreateCollabPod(ctx context.Context, ownerId, partnerId, name string) (types.Pod, error)
}

type SendParams struct {
	To      string `json:"to" validate:"required"`
	Message string `json:"message" validate:"max=1000"`
}

type AcceptParams struct {
	CreatePod bool   `json:"create_pod"`
	PodName   string `json:"pod_name" validate:"max=120"`
}

type RejectParams struct {
	Reason string `json:"reason" validate:"max=500"`
}

// Acceptance is what the recipient gets back after accepting a request.
type Acceptance struct {
	Request types.CollabRequest `json:"request"`
	Room    types.Room          `json:"room"`
	Pod     *types.Pod          `json:"pod,omitempty"`
}

// Service handles collaboration requests between two creators.
type Service struct {
	repo     database.Repository
	notifier Notifier
	rooms    DirectRooms
	pods     PodCreator
	limits   Limits
	log      *logrus.Logger
	timeout  time.Duration
}

func NewService(repo database.Repository, notifier Notifier, rooms DirectRooms, pods PodCreator, limits Limits, log *logrus.Logger, timeout time.Duration) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		rooms:    rooms,
		pods:     pods,
		limits:   limits,
		log:      log,
		timeout:  timeout,
	}
}

func (s *Service) Send(ctx context.Context, fromUserId string, p SendParams) (types.CollabRequest, error) {
	if err := input.Validate(p); err != nil {
		return types.CollabRequest{}, err
	}
	if p.To == fromUserId {
		return types.CollabRequest{}, apperr.New(apperr.Invalid, "cannot send a request to yourself")
	}

	if found, err := s.exists(ctx, fromUserId, p.To, types.CollabPending); err != nil {
		return types.CollabRequest{}, err
	} else if found {
		return types.CollabRequest{}, apperr.New(apperr.Conflict, "request already pending")
	}
	if found, err := s.exists(ctx, fromUserId, p.To, types.CollabAccepted); err != nil {
		return types.CollabRequest{}, err
	} else if found {
		return types.CollabRequest{}, apperr.New(apperr.Conflict, "you're already collaborators")
	}

	if err := s.limits.CollabRequest(ctx, fromUserId, p.To); err != nil {
		return types.CollabRequest{}, err
	}

	now := types.Now()
	req := types.CollabRequest{
		Id:         uuid.NewString(),
		FromUserId: fromUserId,
		ToUserId:   p.To,
		Message:    input.Clean(p.Message),
		Status:     types.CollabPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.repo.CreateCollabRequest(ctx, req)
	})
	switch {
	case errors.Is(err, database.ErrConflict):
		return types.CollabRequest{}, apperr.New(apperr.Conflict, "request already pending")
	case err != nil:
		return types.CollabRequest{}, apperr.Wrap(apperr.Failed, "create collab request", err)
	}

	s.log.WithFields(logrus.Fields{"request_id": req.Id, "from": fromUserId, "to": p.To}).Info("collab request sent")

	s.notify(ctx, p.To, types.NotificationCollabRequest,
		"Someone wants to collaborate with you",
		types.CollabMeta{RequestId: req.Id, FromUserId: fromUserId},
	)
	return req, nil
}

func (s *Service) Cancel(ctx context.Context, requestId, userId string) (types.CollabRequest, error) {
	req, err := s.load(ctx, requestId)
	if err != nil {
		return types.CollabRequest{}, err
	}
	if req.FromUserId != userId {
		return types.CollabRequest{}, apperr.New(apperr.Forbidden, "only the sender can cancel this request")
	}

	return s.transition(ctx, req, types.CollabCancelled, "", "")
}

// Accept marks the request accepted, opens the direct room between the two
// users and optionally starts a pod owned by the recipient.
func (s *Service) Accept(ctx context.Context, requestId, userId string, p AcceptParams) (Acceptance, error) {
	if err := input.Validate(p); err != nil {
		return Acceptance{}, err
	}

	req, err := s.load(ctx, requestId)
	if err != nil {
		return Acceptance{}, err
	}
	if req.ToUserId != userId {
		return Acceptance{}, apperr.New(apperr.Forbidden, "only the recipient can accept this request")
	}
	if req.Status != types.CollabPending {
		return Acceptance{}, apperr.New(apperr.Conflict, "request is no longer pending")
	}

	room, err := s.rooms.GetOrCreateDirectRoom(ctx, req.FromUserId, req.ToUserId)
	if err != nil {
		return Acceptance{}, err
	}

	req, err = s.transition(ctx, req, types.CollabAccepted, "", room.Id)
	if err != nil {
		return Acceptance{}, err
	}

	s.notify(ctx, req.FromUserId, types.NotificationCollabAccepted,
		"Your collaboration request was accepted",
		types.CollabMeta{RequestId: req.Id, ToUserId: req.ToUserId, RoomId: room.Id},
	)

	out := Acceptance{Request: req, Room: room}
	if p.CreatePod {
		pod, err := s.pods.CreateCollabPod(ctx, req.ToUserId, req.FromUserId, p.PodName)
		if err != nil {
			s.log.WithField("request_id", req.Id).WithError(err).Error("failed to create collab pod")
		} else {
			out.Pod = &pod
		}
	}
	return out, nil
}

func (s *Service) Reject(ctx context.Context, requestId, userId string, p RejectParams) (types.CollabRequest, error) {
	if err := input.Validate(p); err != nil {
		return types.CollabRequest{}, err
	}
	reason := input.Clean(p.Reason)

	req, err := s.load(ctx, requestId)
	if err != nil {
		return types.CollabRequest{}, err
	}
	if req.ToUserId != userId {
		return types.CollabRequest{}, apperr.New(apperr.Forbidden, "only the recipient can reject this request")
	}

	req, err = s.transition(ctx, req, types.CollabRejected, reason, "")
	if err != nil {
		return types.CollabRequest{}, err
	}

	message := "Your collaboration request was declined"
	if reason != "" {
		message += ": " + reason
	}
	s.notify(ctx, req.FromUserId, types.NotificationCollabRejected, message,
		types.CollabMeta{RequestId: req.Id, ToUserId: req.ToUserId, Reason: reason},
	)
	return req, nil
}

func (s *Service) Incoming(ctx context.Context, userId string) ([]types.CollabRequest, error) {
	return s.list(ctx, userId, true)
}

func (s *Service) Outgoing(ctx context.Context, userId string) ([]types.CollabRequest, error) {
	return s.list(ctx, userId, false)
}

func (s *Service) list(ctx context.Context, userId string, incoming bool) ([]types.CollabRequest, error) {
	var list []types.CollabRequest
	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		list, err = s.repo.ListCollabRequests(ctx, userId, incoming)
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Failed, "list collab requests", err)
	}
	if list == nil {
		list = []types.CollabRequest{}
	}
	return list, nil
}

func (s *Service) load(ctx context.Context, requestId string) (types.CollabRequest, error) {
	var req types.CollabRequest
	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		req, err = s.repo.GetCollabRequest(ctx, requestId)
		return err
	})
	switch {
	case errors.Is(err, database.ErrNotFound):
		return types.CollabRequest{}, apperr.New(apperr.NotFound, "request not found")
	case err != nil:
		return types.CollabRequest{}, apperr.Wrap(apperr.Failed, "load collab request", err)
	}
	return req, nil
}

func (s *Service) exists(ctx context.Context, from, to string, status types.CollabStatus) (bool, error) {
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		_, err := s.repo.FindCollabRequest(ctx, from, to, status)
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, database.ErrNotFound):
		return false, nil
	default:
		return false, apperr.Wrap(apperr.Failed, "find collab request", err)
	}
}

func (s *Service) transition(ctx context.Context, req types.CollabRequest, status types.CollabStatus, reason, roomId string) (types.CollabRequest, error) {
	var updated types.CollabRequest
	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		updated, err = s.repo.TransitionCollabRequest(ctx, req.Id, status, reason, roomId)
		return err
	})
	switch {
	case errors.Is(err, database.ErrConflict):
		return types.CollabRequest{}, apperr.New(apperr.Conflict, "request is no longer pending")
	case errors.Is(err, database.ErrNotFound):
		return types.CollabRequest{}, apperr.New(apperr.NotFound, "request not found")
	case err != nil:
		return types.CollabRequest{}, apperr.Wrap(apperr.Failed, "update collab request", err)
	}

	s.log.WithFields(logrus.Fields{"request_id": req.Id, "status": status}).Info("collab request updated")
	return updated, nil
}

func (s *Service) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(ctx)
}

// notify follows a committed change, so failures are only logged.
func (s *Service) notify(ctx context.Context, userId, typ, message string, meta types.CollabMeta) {
	if _, err := s.notifier.Push(ctx, userId, typ, message, meta); err != nil {
		s.log.WithFields(logrus.Fields{
			"user_id":    userId,
			"type":       typ,
			"request_id": meta.RequestId,
		}).WithError(err).Error("failed to notify")
	}
}
