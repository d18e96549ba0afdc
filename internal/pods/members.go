package pods

import (
	"context"
	"time"

	"github.com/Ravindra2377/KPR/internal/apperr"
	"github.com/Ravindra2377/KPR/internal/input"
	"github.com/Ravindra2377/KPR/internal/types"
	"github.com/sirupsen/logrus"
)

type roleUpdate struct {
	Roles []RoleParams `json:"roles" validate:"required,max=20,dive"`
}

func (s *Service) RemoveMember(ctx context.Context, podId, ownerId, memberId string) error {
	pod, err := s.loadOwned(ctx, podId, ownerId)
	if err != nil {
		return err
	}

	switch {
	case memberId == pod.OwnerId:
		return apperr.New(apperr.Conflict, "the owner can't be removed")
	case !pod.IsMember(memberId):
		return apperr.New(apperr.NotFound, "user is not a member")
	}

	var removed types.Member
	err = s.write(ctx, func(ctx context.Context) (err error) {
		removed, err = s.repo.RemoveMember(ctx, podId, memberId, activity(types.ActivityRemoved, ownerId, "user_id", memberId))
		return err
	})
	if err != nil {
		return storeError(err, "remove member", "")
	}

	s.log.WithFields(logrus.Fields{"pod_id": podId, "user_id": memberId, "role_id": removed.RoleId}).Info("member removed")

	s.notify(ctx, memberId, types.NotificationPodMemberRemoved,
		"You were removed from "+pod.Name,
		types.PodMeta{PodId: podId, PodName: pod.Name, UserId: memberId, RoleId: removed.RoleId},
	)
	return nil
}

// UpdateRoles adds roles or edits existing ones. Fill state is kept, and a
// role can't shrink below the number of members holding it.
func (s *Service) UpdateRoles(ctx context.Context, podId, ownerId string, params []RoleParams) (types.Pod, error) {
	if err := input.Validate(roleUpdate{Roles: params}); err != nil {
		return types.Pod{}, err
	}

	roles, err := buildRoles(params)
	if err != nil {
		return types.Pod{}, err
	}

	if _, err := s.loadOwned(ctx, podId, ownerId); err != nil {
		return types.Pod{}, err
	}

	err = s.write(ctx, func(ctx context.Context) error {
		return s.repo.UpdateRoles(ctx, podId, roles, activity(types.ActivityRolesUpdated, ownerId))
	})
	if err != nil {
		return types.Pod{}, storeError(err, "update roles", "slot count can't go below the filled count")
	}
	return s.loadPod(ctx, podId)
}

func (s *Service) Boost(ctx context.Context, podId, ownerId string, d time.Duration) (types.Pod, error) {
	if d <= 0 || d > maxBoost {
		return types.Pod{}, apperr.New(apperr.Invalid, "boost must last at most 30 days")
	}

	if _, err := s.loadOwned(ctx, podId, ownerId); err != nil {
		return types.Pod{}, err
	}

	boost := types.Boost{Active: true, EndsAt: types.Now().Add(d)}
	err := s.write(ctx, func(ctx context.Context) error {
		return s.repo.SetBoost(ctx, podId, boost,
			activity(types.ActivityBoosted, ownerId, "ends_at", boost.EndsAt.Format(time.RFC3339)))
	})
	if err != nil {
		return types.Pod{}, storeError(err, "boost pod", "")
	}
	return s.loadPod(ctx, podId)
}
