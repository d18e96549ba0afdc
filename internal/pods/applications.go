package pods

import (
	"context"
	"errors"

	"github.com/Ravindra2377/KPR/internal/apperr"
	"github.com/Ravindra2377/KPR/internal/database"
	"github.com/Ravindra2377/KPR/internal/input"
	"github.com/Ravindra2377/KPR/internal/server"
	"github.com/Ravindra2377/KPR/internal/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type PodApplicantEvent struct {
	PodId     string          `json:"pod_id"`
	Applicant types.Applicant `json:"applicant"`
}

type PodMemberJoinedEvent struct {
	PodId  string       `json:"pod_id"`
	Member types.Member `json:"member"`
}

type PodApplicationRejectedEvent struct {
	PodId       string `json:"pod_id"`
	ApplicantId string `json:"applicant_id"`
	Reason      string `json:"reason,omitempty"`
}

type applicationText struct {
	Message string `json:"message" validate:"max=1000"`
}

type reasonText struct {
	Reason string `json:"reason" validate:"max=500"`
}

// Apply files a pending application by userId for roleId. An empty roleId
// asks to join the pod itself.
func (s *Service) Apply(ctx context.Context, podId, userId, roleId, message string) (types.Applicant, error) {
	if userId == "" {
		return types.Applicant{}, apperr.New(apperr.Invalid, "user is required")
	}
	if err := input.Validate(applicationText{Message: message}); err != nil {
		return types.Applicant{}, err
	}

	pod, err := s.loadPod(ctx, podId)
	if err != nil {
		return types.Applicant{}, err
	}
	if pod.Visibility == types.VisibilityPrivate {
		return types.Applicant{}, apperr.New(apperr.Forbidden, "this pod is invite only")
	}

	// quota is only spent on pods the caller may apply to
	if err := s.limits.PodApply(ctx, userId, podId); err != nil {
		return types.Applicant{}, err
	}

	if pod.IsMember(userId) {
		return types.Applicant{}, apperr.New(apperr.Conflict, "you are already a member of this pod")
	}
	if _, pending := pod.PendingApplicationOf(userId); pending {
		return types.Applicant{}, apperr.New(apperr.Conflict, "you already have a pending application")
	}
	if roleId != types.DefaultRoleId {
		role, ok := pod.Role(roleId)
		if !ok {
			return types.Applicant{}, apperr.New(apperr.NotFound, "role not found")
		}
		if !role.Open() {
			return types.Applicant{}, apperr.New(apperr.Conflict, "role is full")
		}
	}

	applicant := types.Applicant{
		Id:        uuid.NewString(),
		UserId:    userId,
		RoleId:    roleId,
		Message:   input.Clean(message),
		Status:    types.StatusPending,
		CreatedAt: types.Now(),
	}

	err = s.write(ctx, func(ctx context.Context) error {
		return s.repo.AddApplicant(ctx, podId, applicant, activity(types.ActivityApplied, userId, "role_id", roleId))
	})
	if err != nil {
		return types.Applicant{}, storeError(err, "apply to pod", "you already applied or joined this pod")
	}

	s.log.WithFields(logrus.Fields{"pod_id": podId, "user_id": userId, "role_id": roleId}).Info("application received")

	s.notify(ctx, pod.OwnerId, types.NotificationPodApplicant,
		"New application for "+pod.Name,
		types.PodMeta{PodId: podId, PodName: pod.Name, UserId: userId, RoleId: roleId, ApplicantId: applicant.Id},
	)
	s.pusher.PushToUser(pod.OwnerId, server.EventPodApplicant, PodApplicantEvent{PodId: podId, Applicant: applicant})

	return applicant, nil
}

// Withdraw drops the pending application userId holds for roleId. An empty
// roleId matches whichever application is pending.
func (s *Service) Withdraw(ctx context.Context, podId, userId, roleId string) error {
	pod, err := s.loadPod(ctx, podId)
	if err != nil {
		return err
	}

	applicant, ok := pod.PendingApplicationOf(userId)
	if !ok || (roleId != types.DefaultRoleId && applicant.RoleId != roleId) {
		return apperr.New(apperr.NotFound, "no pending application to withdraw")
	}

	err = s.write(ctx, func(ctx context.Context) error {
		_, err := s.repo.RemoveApplicant(ctx, podId, applicant.Id, activity(types.ActivityWithdrawn, userId, "role_id", applicant.RoleId))
		return err
	})
	if err != nil {
		return storeError(err, "withdraw application", "")
	}

	s.notify(ctx, pod.OwnerId, types.NotificationPodApplicationWithdrawn,
		"An applicant withdrew from "+pod.Name,
		types.PodMeta{PodId: podId, PodName: pod.Name, UserId: userId, RoleId: applicant.RoleId, ApplicantId: applicant.Id},
	)
	return nil
}

// Approve admits a pending applicant, claiming a slot on the role they
// applied for.
func (s *Service) Approve(ctx context.Context, podId, ownerId, applicantId string) (Approval, error) {
	pod, err := s.loadOwned(ctx, podId, ownerId)
	if err != nil {
		return Approval{}, err
	}

	applicant, ok := pod.Applicant(applicantId)
	if !ok || applicant.Status != types.StatusPending {
		return Approval{}, apperr.New(apperr.NotFound, "application not found")
	}

	member := types.Member{
		UserId:   applicant.UserId,
		RoleId:   applicant.RoleId,
		Role:     roleLabel(pod, applicant.RoleId),
		JoinedAt: types.Now(),
	}
	entry := activity(types.ActivityAccepted, ownerId, "user_id", applicant.UserId, "role_id", applicant.RoleId)

	err = s.write(ctx, func(ctx context.Context) error {
		return s.repo.AdmitApplicant(ctx, podId, applicantId, member, entry)
	})
	if err != nil {
		return Approval{}, storeError(err, "approve application", "user is already a member")
	}

	s.log.WithFields(logrus.Fields{"pod_id": podId, "user_id": member.UserId, "role_id": member.RoleId}).Info("application approved")

	if updated, err := s.loadPod(ctx, podId); err == nil {
		pod = updated
	} else {
		pod.Members = append(pod.Members, member)
	}

	room := s.directRoom(ctx, ownerId, member.UserId)
	s.notify(ctx, member.UserId, types.NotificationPodMemberJoined,
		"You're in! Your application to "+pod.Name+" was accepted",
		types.PodMeta{PodId: podId, PodName: pod.Name, UserId: member.UserId, RoleId: member.RoleId, ApplicantId: applicantId, RoomId: roomIdOf(room)},
	)
	s.pusher.PushToUsers(pod.MemberIds(), server.EventPodMemberJoined, PodMemberJoinedEvent{PodId: podId, Member: member})

	return Approval{Pod: pod, Member: member, Room: room}, nil
}

func (s *Service) Reject(ctx context.Context, podId, ownerId, applicantId, reason string) error {
	if err := input.Validate(reasonText{Reason: reason}); err != nil {
		return err
	}
	reason = input.Clean(reason)

	pod, err := s.loadOwned(ctx, podId, ownerId)
	if err != nil {
		return err
	}

	applicant, ok := pod.Applicant(applicantId)
	if !ok || applicant.Status != types.StatusPending {
		return apperr.New(apperr.NotFound, "application not found")
	}

	err = s.write(ctx, func(ctx context.Context) error {
		_, err := s.repo.RemoveApplicant(ctx, podId, applicantId,
			activity(types.ActivityRejected, ownerId, "user_id", applicant.UserId, "reason", reason))
		return err
	})
	if err != nil {
		return storeError(err, "reject application", "")
	}

	message := "Your application to " + pod.Name + " was declined"
	if reason != "" {
		message += ": " + reason
	}
	s.notify(ctx, applicant.UserId, types.NotificationPodApplicationRejected, message,
		types.PodMeta{PodId: podId, PodName: pod.Name, UserId: applicant.UserId, RoleId: applicant.RoleId, ApplicantId: applicantId, Reason: reason},
	)
	s.pusher.PushToUser(applicant.UserId, server.EventPodApplicationRejected,
		PodApplicationRejectedEvent{PodId: podId, ApplicantId: applicantId, Reason: reason})

	return nil
}

// storeError classifies a failed pod mutation. conflict is the reason shown
// when the store refused the write because of existing state.
func storeError(err error, op, conflict string) error {
	switch {
	case errors.Is(err, database.ErrRoleFull):
		return apperr.New(apperr.Conflict, "role is full")
	case errors.Is(err, database.ErrConflict):
		if conflict == "" {
			conflict = "pod changed, please retry"
		}
		return apperr.New(apperr.Conflict, conflict)
	case errors.Is(err, database.ErrNotFound):
		return apperr.New(apperr.NotFound, "not found or no longer pending")
	default:
		return apperr.Wrap(apperr.Failed, op, err)
	}
}
