package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/Ravindra2377/KPR/internal/apperr"
	"github.com/Ravindra2377/KPR/internal/database"
	"github.com/Ravindra2377/KPR/internal/server"
	"github.com/Ravindra2377/KPR/internal/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Pusher delivers an event to the live sessions of a user.
type Pusher interface {
	PushToUser(userId, event string, payload any) int
}

type Service struct {
	repo    database.Repository
	pusher  Pusher
	log     *logrus.Logger
	timeout time.Duration
}

func NewService(repo database.Repository, pusher Pusher, log *logrus.Logger, timeout time.Duration) *Service {
	return &Service{
		repo:    repo,
		pusher:  pusher,
		log:     log,
		timeout: timeout,
	}
}

func (s *Service) Create(ctx context.Context, userId, typ, message string, meta types.NotificationMeta) (types.Notification, error) {
	if userId == "" || typ == "" {
		return types.Notification{}, apperr.New(apperr.Invalid, "notification needs a recipient and a type")
	}

	n := types.Notification{
		Id:        uuid.NewString(),
		UserId:    userId,
		Type:      typ,
		Message:   message,
		Meta:      meta,
		CreatedAt: types.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return types.Notification{}, apperr.Wrap(apperr.Failed, "store notification", err)
	}
	return n, nil
}

// Push persists a notification and then delivers it to the recipient's live
// sessions. Delivery is best effort and never fails the call.
func (s *Service) Push(ctx context.Context, userId, typ, message string, meta types.NotificationMeta) (types.Notification, error) {
	n, err := s.Create(ctx, userId, typ, message, meta)
	if err != nil {
		return types.Notification{}, err
	}

	delivered := s.pusher.PushToUser(userId, server.EventNotification, n)
	s.log.WithFields(logrus.Fields{
		"user_id":   userId,
		"type":      typ,
		"delivered": delivered,
	}).Debug("notification pushed")

	return n, nil
}

func (s *Service) ListForUser(ctx context.Context, userId string, limit int) ([]types.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	list, err := s.repo.ListNotifications(ctx, userId, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.Failed, "list notifications", err)
	}
	if list == nil {
		list = []types.Notification{}
	}
	return list, nil
}

func (s *Service) MarkRead(ctx context.Context, id, userId string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.repo.MarkNotificationRead(ctx, id, userId)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound):
		return apperr.New(apperr.NotFound, "notification not found")
	default:
		return apperr.Wrap(apperr.Failed, "mark notification read", err)
	}
}

func (s *Service) MarkAllRead(ctx context.Context, userId string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.repo.MarkAllNotificationsRead(ctx, userId)
	if err != nil {
		return 0, apperr.Wrap(apperr.Failed, "mark all notifications read", err)
	}
	return n, nil
}

func (s *Service) UnreadCount(ctx context.Context, userId string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.repo.CountUnreadNotifications(ctx, userId)
	if err != nil {
		return 0, apperr.Wrap(apperr.Failed, "count unread notifications", err)
	}
	return n, nil
}
