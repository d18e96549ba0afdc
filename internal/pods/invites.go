package pods

import (
	"context"

	"github.com/Ravindra2377/KPR/internal/apperr"
	"github.com/Ravindra2377/KPR/internal/server"
	"github.com/Ravindra2377/KPR/internal/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func (s *Service) Invite(ctx context.Context, podId, ownerId, userId, roleId string) (types.Invite, error) {
	switch {
	case userId == "":
		return types.Invite{}, apperr.New(apperr.Invalid, "user is required")
	case userId == ownerId:
		return types.Invite{}, apperr.New(apperr.Invalid, "you can't invite yourself")
	}

	pod, err := s.loadOwned(ctx, podId, ownerId)
	if err != nil {
		return types.Invite{}, err
	}
	if err := s.limits.PodInvite(ctx, ownerId, podId); err != nil {
		return types.Invite{}, err
	}

	if roleId != types.DefaultRoleId {
		role, ok := pod.Role(roleId)
		if !ok {
			return types.Invite{}, apperr.New(apperr.NotFound, "role not found")
		}
		if !role.Open() {
			return types.Invite{}, apperr.New(apperr.Conflict, "role is full")
		}
	}
	if pod.IsMember(userId) {
		return types.Invite{}, apperr.New(apperr.Conflict, "user is already a member")
	}
	if _, pending := pod.PendingInviteOf(userId); pending {
		return types.Invite{}, apperr.New(apperr.Conflict, "user already has a pending invite")
	}

	inv := types.Invite{
		Id:        uuid.NewString(),
		UserId:    userId,
		RoleId:    roleId,
		InvitedBy: ownerId,
		Status:    types.StatusPending,
		CreatedAt: types.Now(),
	}

	err = s.write(ctx, func(ctx context.Context) error {
		return s.repo.AddInvite(ctx, podId, inv, activity(types.ActivityInvited, ownerId, "user_id", userId, "role_id", roleId))
	})
	if err != nil {
		return types.Invite{}, storeError(err, "invite to pod", "user is already invited or a member")
	}

	s.notify(ctx, userId, types.NotificationPodInvite,
		"You've been invited to join "+pod.Name,
		types.PodMeta{PodId: podId, PodName: pod.Name, UserId: ownerId, RoleId: roleId, InviteId: inv.Id},
	)
	return inv, nil
}

// AcceptInvite turns a pending invite addressed to userId into membership.
func (s *Service) AcceptInvite(ctx context.Context, podId, userId, inviteId string) (Approval, error) {
	pod, inv, err := s.pendingInvite(ctx, podId, userId, inviteId)
	if err != nil {
		return Approval{}, err
	}

	member := types.Member{
		UserId:   userId,
		RoleId:   inv.RoleId,
		Role:     roleLabel(pod, inv.RoleId),
		JoinedAt: types.Now(),
	}

	err = s.write(ctx, func(ctx context.Context) error {
		return s.repo.AcceptInvite(ctx, podId, inviteId, member, activity(types.ActivityJoined, userId, "role_id", inv.RoleId))
	})
	if err != nil {
		return Approval{}, storeError(err, "accept invite", "you are already a member")
	}

	s.log.WithFields(logrus.Fields{"pod_id": podId, "user_id": userId, "role_id": inv.RoleId}).Info("invite accepted")

	if updated, err := s.loadPod(ctx, podId); err == nil {
		pod = updated
	} else {
		pod.Members = append(pod.Members, member)
	}

	room := s.directRoom(ctx, pod.OwnerId, userId)
	s.notify(ctx, pod.OwnerId, types.NotificationPodInviteAccepted,
		"Your invite to "+pod.Name+" was accepted",
		types.PodMeta{PodId: podId, PodName: pod.Name, UserId: userId, RoleId: inv.RoleId, InviteId: inviteId, RoomId: roomIdOf(room)},
	)
	s.pusher.PushToUsers(pod.MemberIds(), server.EventPodMemberJoined, PodMemberJoinedEvent{PodId: podId, Member: member})

	return Approval{Pod: pod, Member: member, Room: room}, nil
}

func (s *Service) DeclineInvite(ctx context.Context, podId, userId, inviteId string) error {
	pod, inv, err := s.pendingInvite(ctx, podId, userId, inviteId)
	if err != nil {
		return err
	}

	err = s.write(ctx, func(ctx context.Context) error {
		return s.repo.DeclineInvite(ctx, podId, inviteId, activity(types.ActivityInviteDeclined, userId, "role_id", inv.RoleId))
	})
	if err != nil {
		return storeError(err, "decline invite", "")
	}

	s.notify(ctx, pod.OwnerId, types.NotificationPodInviteDeclined,
		"Your invite to "+pod.Name+" was declined",
		types.PodMeta{PodId: podId, PodName: pod.Name, UserId: userId, RoleId: inv.RoleId, InviteId: inviteId},
	)
	return nil
}

func (s *Service) pendingInvite(ctx context.Context, podId, userId, inviteId string) (types.Pod, types.Invite, error) {
	pod, err := s.loadPod(ctx, podId)
	if err != nil {
		return types.Pod{}, types.Invite{}, err
	}

	inv, ok := pod.Invite(inviteId)
	switch {
	case !ok:
		return types.Pod{}, types.Invite{}, apperr.New(apperr.NotFound, "invite not found")
	case inv.UserId != userId:
		return types.Pod{}, types.Invite{}, apperr.New(apperr.Forbidden, "this invite is not addressed to you")
	case inv.Status != types.StatusPending:
		return types.Pod{}, types.Invite{}, apperr.New(apperr.Conflict, "invite is no longer pending")
	}
	return pod, inv, nil
}
